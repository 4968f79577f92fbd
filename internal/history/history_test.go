package history

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/domain"
)

func docWith(ids ...string) domain.Document {
	d := domain.EmptyDocument()
	for i, id := range ids {
		d.Blocks = append(d.Blocks, domain.Block{ID: id, ComponentType: "text", Order: i, Props: map[string]any{"n": i}})
	}
	return d
}

func appendBlock(id string) Mutation {
	return func(d domain.Document) (domain.Document, error) {
		next := d.Clone()
		next.Blocks = append(next.Blocks, domain.Block{ID: id, ComponentType: "text"})
		return next, nil
	}
}

func TestRecordAndApply_UndoRestores(t *testing.T) {
	h := New(0)
	start := docWith("a")

	next, err := h.RecordAndApply(start, appendBlock("b"))
	require.NoError(t, err)
	require.Len(t, next.Blocks, 2)
	assert.True(t, h.CanUndo())
	assert.False(t, h.CanRedo())

	back, ok := h.Undo(next)
	require.True(t, ok)
	assert.Empty(t, cmp.Diff(start, back))
	assert.True(t, h.CanRedo())

	again, ok := h.Redo(back)
	require.True(t, ok)
	assert.Empty(t, cmp.Diff(next, again))
}

func TestRecordAndApply_FailedMutationRecordsNothing(t *testing.T) {
	h := New(0)
	start := docWith("a")
	boom := errors.New("boom")

	got, err := h.RecordAndApply(start, func(domain.Document) (domain.Document, error) {
		return domain.Document{}, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, cmp.Diff(start, got))
	assert.False(t, h.CanUndo())
}

func TestUndoRedo_EmptyStacksAreNoops(t *testing.T) {
	h := New(0)
	d := docWith("a")

	got, ok := h.Undo(d)
	assert.False(t, ok)
	assert.Empty(t, cmp.Diff(d, got))

	got, ok = h.Redo(d)
	assert.False(t, ok)
	assert.Empty(t, cmp.Diff(d, got))
}

func TestNewActionClearsRedo(t *testing.T) {
	h := New(0)
	d, _ := h.RecordAndApply(docWith(), appendBlock("a"))
	d, _ = h.Undo(d)
	require.True(t, h.CanRedo())

	d, _ = h.RecordAndApply(d, appendBlock("other"))
	assert.False(t, h.CanRedo())

	got, ok := h.Redo(d)
	assert.False(t, ok)
	assert.Equal(t, []string{"other"}, []string{got.Blocks[0].ID})
}

func TestSnapshotsAreIsolated(t *testing.T) {
	h := New(0)
	start := docWith("a")
	_, err := h.RecordAndApply(start, appendBlock("b"))
	require.NoError(t, err)

	// mutating the caller's copy must not leak into the stored snapshot
	start.Blocks[0].Props["n"] = 99
	prev, ok := h.Undo(docWith("a", "b"))
	require.True(t, ok)
	assert.Equal(t, 0, prev.Blocks[0].Props["n"])
}

func TestLimitDropsOldest(t *testing.T) {
	h := New(3)
	d := docWith()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		d, _ = h.RecordAndApply(d, appendBlock(id))
	}
	assert.Equal(t, 3, h.UndoDepth())

	steps := 0
	for h.CanUndo() {
		d, _ = h.Undo(d)
		steps++
	}
	assert.Equal(t, 3, steps)
	assert.Len(t, d.Blocks, 2, "two oldest snapshots were dropped")
	assert.Equal(t, 3, h.RedoDepth())
}

func TestClear(t *testing.T) {
	h := New(0)
	d, _ := h.RecordAndApply(docWith(), appendBlock("a"))
	h.Undo(d)
	h.Clear()
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
	assert.Empty(t, h.UndoStack())
	assert.Empty(t, h.RedoStack())
}
