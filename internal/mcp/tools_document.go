package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pagebuilder/internal/domain"
)

func (s *Server) registerDocumentTools() {
	// ── list_components ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_components",
		mcp.WithDescription("List the component types that can be added as blocks, with their default props, editable fields and placement rules"),
		mcp.WithString("category",
			mcp.Description("Only list components of this category (layout, basic, media, advanced)"),
		),
	), s.handleListComponents)

	// ── list_documents ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List all stored builder documents"),
	), s.handleListDocuments)

	// ── create_document ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create an empty builder document and open it as the active document"),
		mcp.WithString("name",
			mcp.Description("Name of the new document"),
			mcp.Required(),
		),
	), s.handleCreateDocument)

	// ── open_document ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("open_document",
		mcp.WithDescription("Open a stored document for editing and make it the active document"),
		mcp.WithString("documentId",
			mcp.Description("ID of the document"),
			mcp.Required(),
		),
	), s.handleOpenDocument)

	// ── set_active_document ────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_active_document",
		mcp.WithDescription("Set the active document for subsequent tool calls. Tools that accept documentId default to it."),
		mcp.WithString("documentId",
			mcp.Description("ID of an open document"),
			mcp.Required(),
		),
	), s.handleSetActiveDocument)

	// ── get_document_tree ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_document_tree",
		mcp.WithDescription("Get the nested block tree of a document, roots first, children in render order"),
		mcp.WithString("documentId",
			mcp.Description("ID of the document (defaults to the active document)"),
		),
	), s.handleGetDocumentTree)

	// ── export_document ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("export_document",
		mcp.WithDescription("Export the builder data (blocks, global styles, settings) of a document as JSON"),
		mcp.WithString("documentId",
			mcp.Description("ID of the document (defaults to the active document)"),
		),
		mcp.WithBoolean("toFile",
			mcp.Description("Also write the export to the watched documents directory"),
		),
	), s.handleExportDocument)

	// ── import_document ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("import_document",
		mcp.WithDescription("Store exported builder data as a new document and open it"),
		mcp.WithString("name",
			mcp.Description("Name of the new document"),
			mcp.Required(),
		),
		mcp.WithString("data",
			mcp.Description(`Builder data as JSON: {"blocks": [...], "globalStyles": {...}, "settings": {...}}`),
			mcp.Required(),
		),
	), s.handleImportDocument)

	// ── delete_document ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_document",
		mcp.WithDescription("Permanently delete a stored document and its revisions. This cannot be undone."),
		mcp.WithString("documentId",
			mcp.Description("ID of the document"),
			mcp.Required(),
		),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteDocument)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListComponents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category := req.GetString("category", "")
	if category == "" {
		return jsonResult(s.catalog.List())
	}
	return jsonResult(s.catalog.ListByCategory()[category])
}

func (s *Server) handleListDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recs, err := s.docs.List()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	type documentSummary struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Slug   string `json:"slug"`
		Status string `json:"status"`
		Blocks int    `json:"blocks"`
		Open   bool   `json:"open"`
	}

	out := make([]documentSummary, 0, len(recs))
	for _, r := range recs {
		_, err := s.sessions.Get(r.ID)
		out = append(out, documentSummary{
			ID:     r.ID,
			Name:   r.Name,
			Slug:   r.Slug,
			Status: string(r.Status),
			Blocks: len(r.Content.Blocks),
			Open:   err == nil,
		})
	}
	return jsonResult(out)
}

func (s *Server) handleCreateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireString(req, "name")
	if err != nil {
		return nil, err
	}
	rec, err := s.docs.Create(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	if _, err := s.docs.Open(rec.ID); err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return jsonResult(rec)
}

func (s *Server) handleOpenDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "documentId")
	if err != nil {
		return nil, err
	}
	sess, err := s.docs.Open(id)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return jsonResult(summarize(sess))
}

func (s *Server) handleSetActiveDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "documentId")
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SetActive(id); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Active document set to %s", id)), nil
}

func (s *Server) handleGetDocumentTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	return jsonResult(sess.Tree())
}

func (s *Server) handleExportDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	if req.GetBool("toFile", false) {
		if s.files == nil {
			return nil, fmt.Errorf("file export is not enabled")
		}
		path, err := s.files.Export(sess.ID())
		if err != nil {
			return nil, fmt.Errorf("export document: %w", err)
		}
		return textResult(fmt.Sprintf("Exported %s to %s", sess.ID(), path)), nil
	}
	return jsonResult(sess.ExportBuilderData())
}

func (s *Server) handleImportDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := requireString(req, "name")
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(req.GetArguments()["data"])
	if err != nil {
		return nil, err
	}
	rec, err := s.docs.Import(ctx, name, doc)
	if err != nil {
		return nil, fmt.Errorf("import document: %w", err)
	}
	sess, err := s.docs.Open(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return jsonResult(summarize(sess))
}

func (s *Server) handleDeleteDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "documentId")
	if err != nil {
		return nil, err
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("delete document: %w", err)
	}
	return textResult(fmt.Sprintf("Deleted document %s", id)), nil
}

// decodeDocument accepts builder data as a JSON string or as an object.
func decodeDocument(v any) (domain.Document, error) {
	var raw []byte
	switch t := v.(type) {
	case nil:
		return domain.Document{}, fmt.Errorf("data is required")
	case string:
		raw = []byte(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return domain.Document{}, fmt.Errorf("data: %w", err)
		}
		raw = b
	}
	doc := domain.EmptyDocument()
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("data: invalid builder JSON: %w", err)
	}
	return doc, nil
}
