package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"pagebuilder/internal/blocks"
)

const (
	documentsURI     = "builder://documents"
	componentsURI    = "builder://components"
	documentURIBase  = "builder://document/"
	documentTreePath = "/tree"
)

func (s *Server) registerResources() {
	// ── builder://documents ────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		documentsURI,
		"All Documents",
		mcp.WithMIMEType("application/json"),
	), s.handleDocumentsResource)

	// ── builder://components ───────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		componentsURI,
		"Component Catalog",
		mcp.WithMIMEType("application/json"),
	), s.handleComponentsResource)

	// ── builder://document/{documentId}/tree ───────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			documentURIBase+"{documentId}"+documentTreePath,
			"Block Tree of a Document",
		),
		s.handleDocumentTreeResource,
	)
}

func (s *Server) handleDocumentsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	recs, err := s.docs.List()
	if err != nil {
		return nil, err
	}

	type documentSummary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Slug string `json:"slug"`
	}

	summaries := make([]documentSummary, 0, len(recs))
	for _, r := range recs {
		summaries = append(summaries, documentSummary{ID: r.ID, Name: r.Name, Slug: r.Slug})
	}
	return jsonResource(documentsURI, summaries)
}

func (s *Server) handleComponentsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(componentsURI, s.catalog.ListByCategory())
}

func (s *Server) handleDocumentTreeResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	id := documentIDFromURI(uri)
	if id == "" {
		return nil, fmt.Errorf("could not extract documentId from URI: %s", uri)
	}

	// an open session is newer than the stored content
	if sess, err := s.sessions.Get(id); err == nil {
		return jsonResource(uri, sess.Tree())
	}
	rec, err := s.docs.Get(id)
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, blocks.Tree(rec.Content.Blocks))
}

// documentIDFromURI extracts the id from "builder://document/{id}/tree".
func documentIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, documentURIBase)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, documentTreePath)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
