package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/blocks"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/registry"
	"pagebuilder/internal/service"
)

func TestSessionManager_OpenGetClose(t *testing.T) {
	emitter := &service.MockEmitter{}
	metrics := &fakeMetrics{}
	m := service.NewSessionManager(registry.MustDefault(), 0, emitter, metrics, nil)

	_, err := m.Resolve("")
	assert.ErrorIs(t, err, service.ErrNoActiveSession)

	a, created := m.Open("doc-a", domain.EmptyDocument())
	require.True(t, created)
	again, created := m.Open("doc-a", domain.EmptyDocument())
	assert.False(t, created)
	assert.Same(t, a, again)

	_, _ = m.Open("doc-b", domain.EmptyDocument())
	assert.Equal(t, "doc-b", m.Active())
	assert.Equal(t, []string{"doc-a", "doc-b"}, m.IDs())
	assert.Equal(t, 2, metrics.open)

	require.NoError(t, m.SetActive("doc-a"))
	got, err := m.Resolve("")
	require.NoError(t, err)
	assert.Same(t, a, got)

	assert.ErrorIs(t, m.SetActive("nope"), service.ErrSessionNotOpen)
	_, err = m.Get("nope")
	assert.ErrorIs(t, err, service.ErrSessionNotOpen)

	assert.True(t, m.Close("doc-a"))
	assert.False(t, m.Close("doc-a"))
	assert.Empty(t, m.Active())
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1, metrics.open)
	assert.Equal(t, 2, emitter.Count(service.EventSessionOpened))
	assert.Equal(t, 1, emitter.Count(service.EventSessionClosed))
}

func TestSessionManager_ForwardsBuilderEvents(t *testing.T) {
	emitter := &service.MockEmitter{}
	metrics := &fakeMetrics{}
	m := service.NewSessionManager(registry.MustDefault(), 0, emitter, metrics, nil)
	s, _ := m.Open("doc", domain.EmptyDocument())
	emitter.Events = nil

	sec, err := s.AddBlock("section", "", blocks.Append)
	require.NoError(t, err)
	require.NoError(t, s.SelectBlock(sec.ID))
	_, err = s.AddBlock("heading", "", blocks.Append)
	require.NoError(t, err)
	_, err = s.AddBlock("missing", "", blocks.Append)
	assert.Error(t, err)
	assert.False(t, s.Redo())

	assert.Equal(t, []string{
		service.EventBuilderChanged,
		service.EventBuilderSelection,
		service.EventBuilderChanged,
	}, emitter.Names())

	ev, ok := emitter.Events[0].Data.(service.BuilderEvent)
	require.True(t, ok)
	assert.Equal(t, "doc", ev.DocumentID)
	assert.Equal(t, "addBlock", ev.Action)

	assert.Equal(t, 3, metrics.actions["addBlock"])
	assert.Equal(t, 1, metrics.noops)
}

func TestSessionManager_OpenNormalizesDocument(t *testing.T) {
	m := service.NewSessionManager(registry.MustDefault(), 0, nil, nil, nil)
	doc := domain.EmptyDocument()
	doc.Blocks = []domain.Block{
		{ID: "s", ComponentType: "section"},
		{ID: "orphan", ComponentType: "text", ParentID: "gone"},
	}
	s, _ := m.Open("doc", doc)
	assert.Len(t, s.ExportBuilderData().Blocks, 1)
	assert.False(t, s.Dirty())
}
