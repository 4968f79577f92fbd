package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/blocks"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/registry"
	"pagebuilder/internal/service"
	"pagebuilder/internal/session"
	"pagebuilder/internal/storage"
)

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := storage.Open(storage.DriverSQLite, filepath.Join(t.TempDir(), "mcp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	emitter := &service.MockEmitter{}
	sessions := service.NewSessionManager(registry.MustDefault(), 50, emitter, nil, nil)
	docs := service.NewDocumentService(
		storage.NewDocumentStore(db),
		storage.NewRevisionStore(db, 10),
		sessions, emitter, nil, nil,
	)
	return New(Deps{
		Documents: docs,
		Catalog:   registry.MustDefault(),
		Files:     service.NewFileSync(sessions, t.TempDir(), emitter, nil),
		Notifier:  NewNotifier(),
	})
}

func call(t *testing.T, h handler, args map[string]any) (string, error) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		return "", err
	}
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, nil
}

func mustCall(t *testing.T, h handler, args map[string]any) string {
	t.Helper()
	out, err := call(t, h, args)
	require.NoError(t, err)
	return out
}

func decode[T any](t *testing.T, text string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(text), &v))
	return v
}

func createDocument(t *testing.T, s *Server, name string) domain.DocumentRecord {
	t.Helper()
	return decode[domain.DocumentRecord](t, mustCall(t, s.handleCreateDocument, map[string]any{"name": name}))
}

func addBlock(t *testing.T, s *Server, componentType, parentID string) domain.Block {
	t.Helper()
	args := map[string]any{"componentType": componentType}
	if parentID != "" {
		args["parentId"] = parentID
	}
	return decode[domain.Block](t, mustCall(t, s.handleAddBlock, args))
}

func TestBuildAndUndo(t *testing.T) {
	s := newTestServer(t)
	rec := createDocument(t, s, "Landing")
	assert.Equal(t, "landing", rec.Slug)
	assert.Equal(t, rec.ID, s.sessions.Active())

	sec := addBlock(t, s, "section", "")
	h := addBlock(t, s, "heading", sec.ID)
	assert.Equal(t, sec.ID, h.ParentID)
	assert.Equal(t, "Heading", h.Props["text"])

	tree := decode[[]blocks.Node](t, mustCall(t, s.handleGetDocumentTree, nil))
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, h.ID, tree[0].Children[0].ID)

	st := decode[sessionSummary](t, mustCall(t, s.handleUndo, nil))
	assert.Equal(t, 1, st.Blocks)
	assert.True(t, st.CanRedo)

	st = decode[sessionSummary](t, mustCall(t, s.handleRedo, nil))
	assert.Equal(t, 2, st.Blocks)
	assert.True(t, st.Dirty)

	mustCall(t, s.handleUndo, nil)
	mustCall(t, s.handleUndo, nil)
	assert.Equal(t, "Nothing to undo", mustCall(t, s.handleUndo, nil))
}

func TestToolErrors(t *testing.T) {
	s := newTestServer(t)

	_, err := call(t, s.handleAddBlock, map[string]any{"componentType": "section"})
	assert.ErrorIs(t, err, service.ErrNoActiveSession)

	createDocument(t, s, "Errors")

	_, err = call(t, s.handleAddBlock, map[string]any{})
	assert.EqualError(t, err, "componentType is required")

	_, err = call(t, s.handleAddBlock, map[string]any{"componentType": "carousel"})
	assert.ErrorIs(t, err, blocks.ErrUnknownComponent)

	sec := addBlock(t, s, "section", "")
	row := addBlock(t, s, "row", sec.ID)
	col := addBlock(t, s, "column", row.ID)

	_, err = call(t, s.handleAddBlock, map[string]any{"componentType": "column", "parentId": sec.ID})
	assert.ErrorIs(t, err, blocks.ErrInvalidPlacement)

	_, err = call(t, s.handleMoveBlock, map[string]any{"blockId": row.ID, "parentId": col.ID})
	assert.ErrorIs(t, err, blocks.ErrCycle)

	_, err = call(t, s.handleRemoveBlock, map[string]any{"blockId": "missing"})
	assert.ErrorIs(t, err, blocks.ErrBlockNotFound)

	_, err = call(t, s.handleSetDevice, map[string]any{"device": "watch"})
	assert.ErrorIs(t, err, blocks.ErrInvalidDevice)

	st := decode[sessionSummary](t, mustCall(t, s.handleGetSessionState, nil))
	assert.Equal(t, 3, st.Blocks)
}

func TestUpdateTools(t *testing.T) {
	s := newTestServer(t)
	createDocument(t, s, "Updates")
	sec := addBlock(t, s, "section", "")
	h := addBlock(t, s, "heading", sec.ID)

	// props as an object and as a JSON string
	b := decode[domain.Block](t, mustCall(t, s.handleUpdateBlockProps, map[string]any{
		"blockId": h.ID,
		"props":   map[string]any{"text": "Welcome"},
	}))
	assert.Equal(t, "Welcome", b.Props["text"])
	assert.Equal(t, "h2", b.Props["level"])

	b = decode[domain.Block](t, mustCall(t, s.handleUpdateBlockProps, map[string]any{
		"blockId": h.ID,
		"props":   `{"level": "h1"}`,
	}))
	assert.Equal(t, "h1", b.Props["level"])
	assert.Equal(t, "Welcome", b.Props["text"])

	_, err := call(t, s.handleUpdateBlockProps, map[string]any{"blockId": h.ID, "props": "{oops"})
	assert.Error(t, err)

	mustCall(t, s.handleSetDevice, map[string]any{"device": "mobile"})
	b = decode[domain.Block](t, mustCall(t, s.handleUpdateBlockStyles, map[string]any{
		"blockId": h.ID,
		"styles":  map[string]any{"fontSize": "22px"},
	}))
	assert.Equal(t, "22px", b.Styles.Mobile["fontSize"])
	assert.Equal(t, "40px", b.Styles.Desktop["fontSize"])

	b = decode[domain.Block](t, mustCall(t, s.handleUpdateBlock, map[string]any{
		"blockId": h.ID,
		"order":   float64(3),
		"styles":  map[string]any{"desktop": map[string]any{"color": "red"}},
	}))
	assert.Equal(t, 3, b.Order)
	assert.Equal(t, domain.StyleMap{"color": "red"}, b.Styles.Desktop)
	assert.Nil(t, b.Styles.Mobile)

	_, err = call(t, s.handleUpdateBlock, map[string]any{
		"blockId": h.ID,
		"styles":  map[string]any{"watch": map[string]any{}},
	})
	assert.ErrorIs(t, err, blocks.ErrInvalidDevice)

	_, err = call(t, s.handleUpdateBlock, map[string]any{"blockId": h.ID})
	assert.Error(t, err)

	dup := decode[domain.Block](t, mustCall(t, s.handleDuplicateBlock, map[string]any{"blockId": h.ID}))
	assert.NotEqual(t, h.ID, dup.ID)
	assert.Equal(t, 4, dup.Order)

	gs := decode[domain.DeviceStyles](t, mustCall(t, s.handleUpdateGlobalStyles, map[string]any{
		"device": "tablet",
		"styles": map[string]any{"fontFamily": "serif"},
	}))
	assert.Equal(t, "serif", gs.Tablet["fontFamily"])

	settings := decode[domain.Settings](t, mustCall(t, s.handleUpdateSettings, map[string]any{
		"containerWidth": "960px",
		"colors":         map[string]any{"primary": "#ff0000"},
	}))
	assert.Equal(t, "960px", settings.ContainerWidth)
	assert.Equal(t, "#ff0000", settings.Colors["primary"])
	assert.Equal(t, "#64748b", settings.Colors["secondary"])

	mustCall(t, s.handleClearAll, nil)
	st := decode[sessionSummary](t, mustCall(t, s.handleGetSessionState, nil))
	assert.Zero(t, st.Blocks)
	assert.True(t, st.CanUndo)
}

func TestSelectionAndPreview(t *testing.T) {
	s := newTestServer(t)
	createDocument(t, s, "Preview")
	sec := addBlock(t, s, "section", "")

	b := decode[domain.Block](t, mustCall(t, s.handleSelectBlock, map[string]any{"blockId": sec.ID}))
	assert.Equal(t, sec.ID, b.ID)

	st := decode[sessionSummary](t, mustCall(t, s.handleSetPreviewMode, map[string]any{"enabled": true}))
	assert.True(t, st.IsPreviewMode)
	assert.Empty(t, st.SelectedBlockID)

	_, err := call(t, s.handleSelectBlock, map[string]any{"blockId": sec.ID})
	assert.ErrorIs(t, err, session.ErrPreviewMode)

	st = decode[sessionSummary](t, mustCall(t, s.handleHoverBlock, map[string]any{"blockId": sec.ID}))
	assert.Equal(t, sec.ID, st.HoveredBlockID)
	assert.False(t, st.CanRedo)
}

func TestSaveAndRestoreRevision(t *testing.T) {
	s := newTestServer(t)
	rec := createDocument(t, s, "Revisions")

	assert.Equal(t, "No unsaved changes", mustCall(t, s.handleSaveDocument, nil))

	addBlock(t, s, "section", "")
	res := decode[service.SaveResult](t, mustCall(t, s.handleSaveDocument, map[string]any{"label": "one section"}))
	require.NotNil(t, res.Saved)
	assert.Equal(t, rec.ID, res.DocumentID)

	mustCall(t, s.handleClearAll, nil)

	type revision struct {
		ID     string `json:"id"`
		Label  string `json:"label"`
		Blocks int    `json:"blocks"`
	}
	revs := decode[[]revision](t, mustCall(t, s.handleListRevisions, nil))
	require.Len(t, revs, 1)
	assert.Equal(t, "one section", revs[0].Label)
	assert.Equal(t, 1, revs[0].Blocks)

	st := decode[sessionSummary](t, mustCall(t, s.handleRestoreRevision, map[string]any{"revisionId": revs[0].ID}))
	assert.Equal(t, 1, st.Blocks)

	// restoring is undoable
	st = decode[sessionSummary](t, mustCall(t, s.handleUndo, nil))
	assert.Zero(t, st.Blocks)
}

func TestImportExport(t *testing.T) {
	s := newTestServer(t)
	createDocument(t, s, "Source")
	sec := addBlock(t, s, "section", "")
	addBlock(t, s, "text", sec.ID)

	exported := mustCall(t, s.handleExportDocument, nil)

	st := decode[sessionSummary](t, mustCall(t, s.handleImportDocument, map[string]any{
		"name": "Copy",
		"data": exported,
	}))
	assert.Equal(t, 2, st.Blocks)
	assert.Equal(t, st.DocumentID, s.sessions.Active())
	assert.JSONEq(t, exported, mustCall(t, s.handleExportDocument, nil))

	out := mustCall(t, s.handleExportDocument, map[string]any{"toFile": true})
	assert.Contains(t, out, s.files.Path(st.DocumentID))

	_, err := call(t, s.handleImportDocument, map[string]any{"name": "Broken", "data": "[1, 2"})
	assert.Error(t, err)

	docs := decode[[]map[string]any](t, mustCall(t, s.handleListDocuments, nil))
	assert.Len(t, docs, 2)

	mustCall(t, s.handleDeleteDocument, map[string]any{"documentId": st.DocumentID})
	docs = decode[[]map[string]any](t, mustCall(t, s.handleListDocuments, nil))
	assert.Len(t, docs, 1)
}

func TestDocumentTreeResource(t *testing.T) {
	s := newTestServer(t)
	rec := createDocument(t, s, "Tree")
	addBlock(t, s, "section", "")

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "builder://document/" + rec.ID + "/tree"
	contents, err := s.handleDocumentTreeResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text := contents[0].(mcp.TextResourceContents)
	assert.Equal(t, "application/json", text.MIMEType)
	assert.Len(t, decode[[]blocks.Node](t, text.Text), 1)

	req.Params.URI = "builder://document/missing/tree"
	_, err = s.handleDocumentTreeResource(context.Background(), req)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentIDFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"builder://document/abc/tree", "abc"},
		{"builder://document/abc-123/tree", "abc-123"},
		{"builder://document/a/b/tree", ""},
		{"builder://document/abc", ""},
		{"notes://page/abc/blocks", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, documentIDFromURI(tt.uri), tt.uri)
	}
}

func TestComponentsAndPrompts(t *testing.T) {
	s := newTestServer(t)

	all := decode[[]registry.Entry](t, mustCall(t, s.handleListComponents, nil))
	assert.Len(t, all, s.catalog.Len())

	layout := decode[[]registry.Entry](t, mustCall(t, s.handleListComponents, map[string]any{"category": "layout"}))
	assert.NotEmpty(t, layout)
	for _, e := range layout {
		assert.Equal(t, "layout", e.Category)
	}

	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"topic": "coffee shop"}
	res, err := s.handleLandingPagePrompt(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0].Content.(mcp.TextContent).Text, "coffee shop")
}

func TestNotifierDetached(t *testing.T) {
	n := NewNotifier()
	assert.NotPanics(t, func() {
		n.Emit(context.Background(), service.EventBuilderChanged, service.BuilderEvent{DocumentID: "x"})
	})

	s := newTestServer(t)
	n.Attach(s.MCPServer())
	assert.NotPanics(t, func() {
		n.Emit(context.Background(), service.EventDocumentSaved, map[string]any{"documentId": "x"})
	})
}
