package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"pagebuilder/internal/domain"
)

func (s *Server) registerSessionTools() {
	documentID := mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)"))

	// ── undo / redo ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Revert the last document change"),
		documentID,
	), s.handleUndo)

	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Re-apply the last undone document change"),
		documentID,
	), s.handleRedo)

	// ── get_session_state ──────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_session_state",
		mcp.WithDescription("Get selection, device, preview, history and save state of a document session"),
		documentID,
	), s.handleGetSessionState)

	// ── select_block / hover_block ─────────────────────
	s.mcp.AddTool(mcp.NewTool("select_block",
		mcp.WithDescription("Select a block for editing. Omit blockId to clear the selection. Not allowed in preview mode."),
		mcp.WithString("blockId", mcp.Description("Block ID")),
		documentID,
	), s.handleSelectBlock)

	s.mcp.AddTool(mcp.NewTool("hover_block",
		mcp.WithDescription("Mark a block as hovered. Omit blockId to clear it."),
		mcp.WithString("blockId", mcp.Description("Block ID")),
		documentID,
	), s.handleHoverBlock)

	// ── set_device ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_device",
		mcp.WithDescription("Switch the active device class. Style edits without an explicit device apply to it."),
		mcp.WithString("device",
			mcp.Description("Device class"),
			mcp.Required(),
			mcp.Enum(string(domain.DeviceDesktop), string(domain.DeviceTablet), string(domain.DeviceMobile)),
		),
		documentID,
	), s.handleSetDevice)

	// ── set_preview_mode ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_preview_mode",
		mcp.WithDescription("Turn preview mode on or off. Entering preview clears the selection."),
		mcp.WithBoolean("enabled", mcp.Description("Preview on or off"), mcp.Required()),
		documentID,
	), s.handleSetPreviewMode)

	// ── save_document ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_document",
		mcp.WithDescription("Save the document and record a revision. Does nothing when there are no unsaved changes unless force is set."),
		mcp.WithString("label", mcp.Description("Revision label (optional)")),
		mcp.WithBoolean("force", mcp.Description("Save even without changes")),
		documentID,
	), s.handleSaveDocument)

	// ── list_revisions / restore_revision ──────────────
	s.mcp.AddTool(mcp.NewTool("list_revisions",
		mcp.WithDescription("List saved revisions of a document, newest first"),
		documentID,
	), s.handleListRevisions)

	s.mcp.AddTool(mcp.NewTool("restore_revision",
		mcp.WithDescription("Load a saved revision into the document. The current content can be recovered with undo."),
		mcp.WithString("revisionId", mcp.Description("Revision ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRestoreRevision)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	if !sess.Undo() {
		return textResult("Nothing to undo"), nil
	}
	return jsonResult(summarize(sess))
}

func (s *Server) handleRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	if !sess.Redo() {
		return textResult("Nothing to redo"), nil
	}
	return jsonResult(summarize(sess))
}

func (s *Server) handleGetSessionState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	return jsonResult(summarize(sess))
}

func (s *Server) handleSelectBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	blockID := req.GetString("blockId", "")
	if err := sess.SelectBlock(blockID); err != nil {
		return nil, fmt.Errorf("select block: %w", err)
	}
	if blockID == "" {
		return textResult("Selection cleared"), nil
	}
	b, _ := sess.SelectedBlock()
	return jsonResult(b)
}

func (s *Server) handleHoverBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	if err := sess.HoverBlock(req.GetString("blockId", "")); err != nil {
		return nil, fmt.Errorf("hover block: %w", err)
	}
	return jsonResult(summarize(sess))
}

func (s *Server) handleSetDevice(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	device, err := requireString(req, "device")
	if err != nil {
		return nil, err
	}
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	if err := sess.SetDevice(domain.Device(device)); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Device set to %s", device)), nil
}

func (s *Server) handleSetPreviewMode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	sess.SetPreviewMode(req.GetBool("enabled", false))
	return jsonResult(summarize(sess))
}

func (s *Server) handleSaveDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.resolveSession(req)
	if err != nil {
		return nil, err
	}
	res, err := s.docs.Save(ctx, sess.ID(), req.GetString("label", ""), req.GetBool("force", false))
	if err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	if res.Saved == nil {
		return textResult("No unsaved changes"), nil
	}
	return jsonResult(res)
}

func (s *Server) handleListRevisions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("documentId", "")
	if id == "" {
		id = s.sessions.Active()
	}
	if id == "" {
		return nil, fmt.Errorf("no documentId provided and no active document set (use open_document first)")
	}
	revs, err := s.docs.ListRevisions(id)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}

	type revisionSummary struct {
		ID        string `json:"id"`
		Label     string `json:"label"`
		Blocks    int    `json:"blocks"`
		CreatedAt string `json:"createdAt"`
	}

	out := make([]revisionSummary, len(revs))
	for i, r := range revs {
		out[i] = revisionSummary{
			ID:        r.ID,
			Label:     r.Label,
			Blocks:    len(r.Content.Blocks),
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
		}
	}
	return jsonResult(out)
}

func (s *Server) handleRestoreRevision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	revisionID, err := requireString(req, "revisionId")
	if err != nil {
		return nil, err
	}
	sess, err := s.docs.RestoreRevision(revisionID)
	if err != nil {
		return nil, fmt.Errorf("restore revision: %w", err)
	}
	return jsonResult(summarize(sess))
}
