// Package history keeps linear undo/redo stacks of document snapshots.
package history

import "pagebuilder/internal/domain"

// Mutation turns one document into the next. Returning an error aborts the
// change and leaves the history untouched.
type Mutation func(domain.Document) (domain.Document, error)

// History is a pair of snapshot stacks. New actions clear the redo stack;
// there is no branching. It is not safe for concurrent use; the session
// owning it serializes access.
type History struct {
	undo  []domain.Document
	redo  []domain.Document
	limit int
}

// New creates a History keeping at most limit undo snapshots.
// A limit of zero or less keeps everything.
func New(limit int) *History {
	return &History{limit: limit}
}

// RecordAndApply snapshots current onto the undo stack, applies mutate and
// clears the redo stack. When mutate fails nothing is recorded and current
// is returned with the error.
func (h *History) RecordAndApply(current domain.Document, mutate Mutation) (domain.Document, error) {
	next, err := mutate(current)
	if err != nil {
		return current, err
	}
	h.Record(current)
	return next, nil
}

// Record pushes a snapshot of before onto the undo stack and clears redo.
func (h *History) Record(before domain.Document) {
	h.undo = append(h.undo, before.Clone())
	if h.limit > 0 && len(h.undo) > h.limit {
		drop := len(h.undo) - h.limit
		h.undo = append([]domain.Document(nil), h.undo[drop:]...)
	}
	h.redo = nil
}

// Undo pops the newest snapshot and pushes current onto the redo stack.
// It reports false, and returns current, when there is nothing to undo.
func (h *History) Undo(current domain.Document) (domain.Document, bool) {
	if len(h.undo) == 0 {
		return current, false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current.Clone())
	return prev, true
}

// Redo is the mirror of Undo.
func (h *History) Redo(current domain.Document) (domain.Document, bool) {
	if len(h.redo) == 0 {
		return current, false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, current.Clone())
	return next, true
}

// CanUndo reports whether Undo would change anything.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether Redo would change anything.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// UndoDepth returns the number of undo snapshots.
func (h *History) UndoDepth() int { return len(h.undo) }

// RedoDepth returns the number of redo snapshots.
func (h *History) RedoDepth() int { return len(h.redo) }

// Limit returns the configured undo limit.
func (h *History) Limit() int { return h.limit }

// UndoStack returns copies of the undo snapshots, oldest first.
func (h *History) UndoStack() []domain.Document { return cloneAll(h.undo) }

// RedoStack returns copies of the redo snapshots, oldest first.
func (h *History) RedoStack() []domain.Document { return cloneAll(h.redo) }

// Clear drops both stacks.
func (h *History) Clear() {
	h.undo = nil
	h.redo = nil
}

func cloneAll(docs []domain.Document) []domain.Document {
	out := make([]domain.Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}
