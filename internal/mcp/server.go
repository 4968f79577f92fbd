package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"pagebuilder/internal/registry"
	"pagebuilder/internal/service"
	"pagebuilder/internal/session"
)

const (
	serverName    = "pagebuilder-mcp"
	serverVersion = "1.0.0"
)

// Server is the MCP server for the page builder.
// It exposes tools, resources and prompts so agents can edit builder documents.
type Server struct {
	mcp *server.MCPServer
	log *zap.Logger

	docs     *service.DocumentService
	sessions *service.SessionManager
	catalog  *registry.Registry
	files    *service.FileSync
}

// Deps holds all dependencies passed from the App layer to the MCP server.
type Deps struct {
	Documents *service.DocumentService
	Catalog   *registry.Registry
	Files     *service.FileSync // optional, enables export_document toFile
	Notifier  *Notifier         // optional, attached to the new server
	Logger    *zap.Logger
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log:      log.Named("mcp"),
		docs:     deps.Documents,
		sessions: deps.Documents.Sessions(),
		catalog:  deps.Catalog,
		files:    deps.Files,
	}

	s.mcp = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerDocumentTools()
	s.registerBlockTools()
	s.registerSessionTools()
	s.registerResources()
	s.registerPrompts()

	if deps.Notifier != nil {
		deps.Notifier.Attach(s.mcp)
	}
	return s
}

// MCPServer exposes the underlying server, mostly for tests.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves MCP over stdin/stdout until ctx is cancelled or the
// input is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.log.Info("starting stdio server")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// resolveSession returns the session named by the documentId argument, or
// the active one when it is omitted. A stored document that is not open yet
// is opened.
func (s *Server) resolveSession(req mcp.CallToolRequest) (*session.Session, error) {
	id := req.GetString("documentId", "")
	if id == "" {
		sess, err := s.sessions.Resolve("")
		if err != nil {
			return nil, fmt.Errorf("%w (use open_document first)", err)
		}
		return sess, nil
	}
	if sess, err := s.sessions.Get(id); err == nil {
		return sess, nil
	}
	return s.docs.Open(id)
}

// sessionSummary is the compact view of a session returned by state tools.
type sessionSummary struct {
	DocumentID      string `json:"documentId"`
	Blocks          int    `json:"blocks"`
	SelectedBlockID string `json:"selectedBlockId,omitempty"`
	HoveredBlockID  string `json:"hoveredBlockId,omitempty"`
	DraggedBlockID  string `json:"draggedBlockId,omitempty"`
	Device          string `json:"device"`
	IsPreviewMode   bool   `json:"isPreviewMode"`
	CanUndo         bool   `json:"canUndo"`
	CanRedo         bool   `json:"canRedo"`
	Revision        uint64 `json:"revision"`
	Dirty           bool   `json:"dirty"`
}

func summarize(sess *session.Session) sessionSummary {
	st := sess.Snapshot()
	return sessionSummary{
		DocumentID:      sess.ID(),
		Blocks:          len(st.Document.Blocks),
		SelectedBlockID: st.SelectedBlockID,
		HoveredBlockID:  st.HoveredBlockID,
		DraggedBlockID:  st.DraggedBlockID,
		Device:          string(st.Device),
		IsPreviewMode:   st.IsPreviewMode,
		CanUndo:         st.CanUndo(),
		CanRedo:         st.CanRedo(),
		Revision:        st.Revision,
		Dirty:           st.Dirty,
	}
}
