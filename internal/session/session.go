// Package session is the builder session controller: it owns one editable
// document together with its selection, device, preview and history state,
// and routes every mutation through the block store and the history.
package session

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"pagebuilder/internal/blocks"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/history"
)

// ErrPreviewMode is returned when selecting a block while previewing.
var ErrPreviewMode = errors.New("selection is disabled in preview mode")

// Action names reported in events and metrics.
const (
	ActionAddBlock           = "addBlock"
	ActionRemoveBlock        = "removeBlock"
	ActionMoveBlock          = "moveBlock"
	ActionUpdateBlock        = "updateBlock"
	ActionUpdateBlockProps   = "updateBlockProps"
	ActionUpdateBlockStyles  = "updateBlockStyles"
	ActionDuplicateBlock     = "duplicateBlock"
	ActionClearAll           = "clearAll"
	ActionUpdateGlobalStyles = "updateGlobalStyles"
	ActionUpdateSettings     = "updateSettings"
	ActionReplaceDocument    = "replaceDocument"
	ActionUndo               = "undo"
	ActionRedo               = "redo"
	ActionLoad               = "loadBuilderData"
	ActionSelectBlock        = "selectBlock"
	ActionHoverBlock         = "hoverBlock"
	ActionDragBlock          = "dragBlock"
	ActionSetDevice          = "setDevice"
	ActionSetPreviewMode     = "setPreviewMode"
)

// Event describes one dispatched action.
type Event struct {
	SessionID string `json:"sessionId"`
	Action    string `json:"action"`
	// Changed is true when the document content changed.
	Changed  bool   `json:"changed"`
	Revision uint64 `json:"revision"`
	Err      error  `json:"-"`
}

// Listener receives events after the action has completed and the session
// lock has been released.
type Listener func(Event)

// Options configures a Session.
type Options struct {
	Logger       *zap.Logger
	HistoryLimit int
	Listeners    []Listener
}

// State is a read-only copy of the session state.
type State struct {
	Document        domain.Document `json:"document"`
	SelectedBlockID string          `json:"selectedBlockId,omitempty"`
	HoveredBlockID  string          `json:"hoveredBlockId,omitempty"`
	DraggedBlockID  string          `json:"draggedBlockId,omitempty"`
	Device          domain.Device   `json:"device"`
	IsPreviewMode   bool            `json:"isPreviewMode"`
	UndoDepth       int             `json:"undoDepth"`
	RedoDepth       int             `json:"redoDepth"`
	Revision        uint64          `json:"revision"`
	Dirty           bool            `json:"dirty"`
}

// CanUndo reports whether there is anything to undo.
func (s State) CanUndo() bool { return s.UndoDepth > 0 }

// CanRedo reports whether there is anything to redo.
func (s State) CanRedo() bool { return s.RedoDepth > 0 }

// Session is one editing surface. All methods are safe for concurrent use;
// actions are applied one at a time.
type Session struct {
	id  string
	cat blocks.Catalog
	log *zap.Logger

	mu       sync.Mutex
	doc      domain.Document
	history  *history.History
	selected string
	hovered  string
	dragged  string
	device   domain.Device
	preview  bool
	revision uint64
	saved    uint64

	lmu       sync.RWMutex
	listeners []Listener
}

// New creates a session holding an empty document.
func New(id string, cat blocks.Catalog, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		id:        id,
		cat:       cat,
		log:       log.With(zap.String("session", id)),
		doc:       domain.EmptyDocument(),
		history:   history.New(opts.HistoryLimit),
		device:    domain.DeviceDesktop,
		listeners: append([]Listener(nil), opts.Listeners...),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Subscribe adds a listener.
func (s *Session) Subscribe(l Listener) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, l)
	s.lmu.Unlock()
}

func (s *Session) notify(ev Event) {
	s.lmu.RLock()
	ls := s.listeners
	s.lmu.RUnlock()
	for _, l := range ls {
		l(ev)
	}
}

// mutate applies fn as one undoable action. On failure the state is left
// as it was, nothing is recorded, and a warning is logged.
func (s *Session) mutate(action string, fn history.Mutation) error {
	s.mu.Lock()
	next, err := s.history.RecordAndApply(s.doc, fn)
	if err == nil {
		s.doc = next
		s.revision++
		s.dropStaleRefs()
	}
	ev := Event{SessionID: s.id, Action: action, Changed: err == nil, Revision: s.revision, Err: err}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("builder action ignored", zap.String("action", action), zap.Error(err))
	}
	s.notify(ev)
	return err
}

// uiChange applies a change that is not recorded in history.
func (s *Session) uiChange(action string, fn func() error) error {
	s.mu.Lock()
	err := fn()
	ev := Event{SessionID: s.id, Action: action, Revision: s.revision, Err: err}
	s.mu.Unlock()

	if err != nil {
		s.log.Debug("builder ui action ignored", zap.String("action", action), zap.Error(err))
	}
	s.notify(ev)
	return err
}

// dropStaleRefs clears selection, hover and drag ids that no longer exist.
// Callers hold s.mu.
func (s *Session) dropStaleRefs() {
	if s.selected == "" && s.hovered == "" && s.dragged == "" {
		return
	}
	idx := blocks.NewIndex(s.doc.Blocks)
	if !idx.Has(s.selected) {
		s.selected = ""
	}
	if !idx.Has(s.hovered) {
		s.hovered = ""
	}
	if !idx.Has(s.dragged) {
		s.dragged = ""
	}
}

// ── Document mutations ─────────────────────────────────────

// AddBlock inserts a block of componentType under parentID ("" for a root)
// at index (blocks.Append for the end) and returns it.
func (s *Session) AddBlock(componentType, parentID string, index int) (domain.Block, error) {
	var created domain.Block
	err := s.mutate(ActionAddBlock, func(d domain.Document) (domain.Document, error) {
		out, b, err := blocks.Insert(s.cat, d.Blocks, componentType, parentID, index)
		if err != nil {
			return d, err
		}
		created = b
		d.Blocks = out
		return d, nil
	})
	return created, err
}

// RemoveBlock removes a block and its whole subtree.
func (s *Session) RemoveBlock(blockID string) error {
	return s.mutate(ActionRemoveBlock, func(d domain.Document) (domain.Document, error) {
		out, err := blocks.RemoveSubtree(d.Blocks, blockID)
		d.Blocks = out
		return d, err
	})
}

// MoveBlock reparents a block. Moves that would create a cycle return
// blocks.ErrCycle and change nothing.
func (s *Session) MoveBlock(blockID, newParentID string, index int) error {
	return s.mutate(ActionMoveBlock, func(d domain.Document) (domain.Document, error) {
		out, err := blocks.Reparent(s.cat, d.Blocks, blockID, newParentID, index)
		d.Blocks = out
		return d, err
	})
}

// UpdateBlock replaces the patched fields of a block.
func (s *Session) UpdateBlock(blockID string, p blocks.Patch) error {
	return s.mutate(ActionUpdateBlock, func(d domain.Document) (domain.Document, error) {
		out, err := blocks.Update(d.Blocks, blockID, p)
		d.Blocks = out
		return d, err
	})
}

// UpdateBlockProps shallow-merges props into a block.
func (s *Session) UpdateBlockProps(blockID string, props map[string]any) error {
	return s.mutate(ActionUpdateBlockProps, func(d domain.Document) (domain.Document, error) {
		out, err := blocks.UpdateProps(d.Blocks, blockID, props)
		d.Blocks = out
		return d, err
	})
}

// UpdateBlockStyles shallow-merges styles into one device's style map of a
// block. An empty device means the session's active device.
func (s *Session) UpdateBlockStyles(blockID string, device domain.Device, styles map[string]any) error {
	return s.mutate(ActionUpdateBlockStyles, func(d domain.Document) (domain.Document, error) {
		if device == "" {
			device = s.device
		}
		out, err := blocks.UpdateStyles(d.Blocks, blockID, device, styles)
		d.Blocks = out
		return d, err
	})
}

// DuplicateBlock copies a single block (not its children) next to itself.
func (s *Session) DuplicateBlock(blockID string) (domain.Block, error) {
	var dup domain.Block
	err := s.mutate(ActionDuplicateBlock, func(d domain.Document) (domain.Document, error) {
		out, b, err := blocks.Duplicate(s.cat, d.Blocks, blockID)
		if err != nil {
			return d, err
		}
		dup = b
		d.Blocks = out
		return d, nil
	})
	return dup, err
}

// ClearAll resets to the empty default document. Unlike LoadBuilderData it
// is undoable.
func (s *Session) ClearAll() {
	_ = s.mutate(ActionClearAll, func(domain.Document) (domain.Document, error) {
		return domain.EmptyDocument(), nil
	})
}

// ReplaceDocument swaps in doc as one undoable action, as when restoring a
// saved revision. Malformed blocks are pruned the same way as on load.
func (s *Session) ReplaceDocument(doc domain.Document) blocks.Report {
	var rep blocks.Report
	_ = s.mutate(ActionReplaceDocument, func(domain.Document) (domain.Document, error) {
		next := doc.Clone()
		next.Blocks, rep = blocks.Normalize(next.Blocks)
		return next, nil
	})
	return rep
}

// UpdateGlobalStyles shallow-merges styles into the document's global style
// map for device ("" for the active device).
func (s *Session) UpdateGlobalStyles(device domain.Device, styles map[string]any) error {
	return s.mutate(ActionUpdateGlobalStyles, func(d domain.Document) (domain.Document, error) {
		if device == "" {
			device = s.device
		}
		if !device.Valid() {
			return d, fmt.Errorf("%w: %q", blocks.ErrInvalidDevice, device)
		}
		merged := domain.CloneMap(d.GlobalStyles.For(device))
		if merged == nil {
			merged = domain.StyleMap{}
		}
		for k, v := range styles {
			merged[k] = domain.CloneValue(v)
		}
		d.GlobalStyles = d.GlobalStyles.With(device, merged)
		return d, nil
	})
}

// SettingsPatch changes document settings. Nil fields are left alone; the
// maps are merged shallowly.
type SettingsPatch struct {
	ContainerWidth *string        `json:"containerWidth,omitempty"`
	Spacing        map[string]any `json:"spacing,omitempty"`
	Typography     map[string]any `json:"typography,omitempty"`
	Colors         map[string]any `json:"colors,omitempty"`
}

// UpdateSettings applies a SettingsPatch.
func (s *Session) UpdateSettings(p SettingsPatch) error {
	return s.mutate(ActionUpdateSettings, func(d domain.Document) (domain.Document, error) {
		st := d.Settings.Clone()
		if p.ContainerWidth != nil {
			st.ContainerWidth = *p.ContainerWidth
		}
		st.Spacing = mergeInto(st.Spacing, p.Spacing)
		st.Typography = mergeInto(st.Typography, p.Typography)
		st.Colors = mergeInto(st.Colors, p.Colors)
		d.Settings = st
		return d, nil
	})
}

func mergeInto(base, partial map[string]any) map[string]any {
	if len(partial) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]any, len(partial))
	}
	for k, v := range partial {
		base[k] = domain.CloneValue(v)
	}
	return base
}

// ── History ────────────────────────────────────────────────

// Undo restores the previous document. It reports false when there is
// nothing to undo.
func (s *Session) Undo() bool {
	return s.step(ActionUndo, s.history.Undo)
}

// Redo re-applies the last undone document. It reports false when there is
// nothing to redo.
func (s *Session) Redo() bool {
	return s.step(ActionRedo, s.history.Redo)
}

func (s *Session) step(action string, fn func(domain.Document) (domain.Document, bool)) bool {
	s.mu.Lock()
	next, ok := fn(s.doc)
	if ok {
		s.doc = next
		s.revision++
		s.dropStaleRefs()
	}
	ev := Event{SessionID: s.id, Action: action, Changed: ok, Revision: s.revision}
	s.mu.Unlock()

	s.notify(ev)
	return ok
}

// CanUndo reports whether Undo would change anything.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

// CanRedo reports whether Redo would change anything.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// ── Load / export ──────────────────────────────────────────

// LoadBuilderData replaces the document wholesale, resets selection, hover
// and drag, and clears both history stacks. Blocks without an id, blocks
// that repeat an id and blocks that cannot be reached from a root are
// dropped and listed in the report. The loaded document counts as saved.
func (s *Session) LoadBuilderData(doc domain.Document) blocks.Report {
	return s.load(doc, true)
}

// ReloadBuilderData loads doc like LoadBuilderData but leaves the session
// dirty, for content that came from somewhere other than the store.
func (s *Session) ReloadBuilderData(doc domain.Document) blocks.Report {
	return s.load(doc, false)
}

func (s *Session) load(doc domain.Document, saved bool) blocks.Report {
	loaded := doc.Clone()
	cleaned, rep := blocks.Normalize(loaded.Blocks)
	loaded.Blocks = cleaned

	s.mu.Lock()
	s.doc = loaded
	s.history.Clear()
	s.selected, s.hovered, s.dragged = "", "", ""
	s.revision++
	if saved {
		s.saved = s.revision
	}
	ev := Event{SessionID: s.id, Action: ActionLoad, Changed: true, Revision: s.revision}
	s.mu.Unlock()

	if !rep.Clean() {
		s.log.Warn("pruned malformed blocks on load",
			zap.Ints("invalid", rep.Invalid),
			zap.Strings("duplicates", rep.Duplicates),
			zap.Strings("unreachable", rep.Unreachable))
	}
	s.notify(ev)
	return rep
}

// ExportBuilderData returns a copy of the current document.
func (s *Session) ExportBuilderData() domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// ── UI state (not recorded in history) ─────────────────────

// SelectBlock selects a block; an empty id clears the selection.
func (s *Session) SelectBlock(blockID string) error {
	return s.uiChange(ActionSelectBlock, func() error {
		if blockID != "" {
			if s.preview {
				return ErrPreviewMode
			}
			if !blocks.NewIndex(s.doc.Blocks).Has(blockID) {
				return fmt.Errorf("%w: %s", blocks.ErrBlockNotFound, blockID)
			}
		}
		s.selected = blockID
		return nil
	})
}

// HoverBlock marks a block as hovered; an empty id clears it.
func (s *Session) HoverBlock(blockID string) error {
	return s.uiChange(ActionHoverBlock, func() error {
		if blockID != "" && !blocks.NewIndex(s.doc.Blocks).Has(blockID) {
			return fmt.Errorf("%w: %s", blocks.ErrBlockNotFound, blockID)
		}
		s.hovered = blockID
		return nil
	})
}

// DragBlock marks a block as being dragged; an empty id ends the drag.
func (s *Session) DragBlock(blockID string) error {
	return s.uiChange(ActionDragBlock, func() error {
		if blockID != "" && !blocks.NewIndex(s.doc.Blocks).Has(blockID) {
			return fmt.Errorf("%w: %s", blocks.ErrBlockNotFound, blockID)
		}
		s.dragged = blockID
		return nil
	})
}

// SetDevice switches the active device class.
func (s *Session) SetDevice(d domain.Device) error {
	return s.uiChange(ActionSetDevice, func() error {
		if !d.Valid() {
			return fmt.Errorf("%w: %q", blocks.ErrInvalidDevice, d)
		}
		s.device = d
		return nil
	})
}

// SetPreviewMode toggles preview. Entering preview clears the selection,
// hover and drag state.
func (s *Session) SetPreviewMode(on bool) {
	_ = s.uiChange(ActionSetPreviewMode, func() error {
		s.preview = on
		if on {
			s.selected, s.hovered, s.dragged = "", "", ""
		}
		return nil
	})
}

// ── Queries ────────────────────────────────────────────────

// Snapshot returns a copy of the whole session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Document:        s.doc.Clone(),
		SelectedBlockID: s.selected,
		HoveredBlockID:  s.hovered,
		DraggedBlockID:  s.dragged,
		Device:          s.device,
		IsPreviewMode:   s.preview,
		UndoDepth:       s.history.UndoDepth(),
		RedoDepth:       s.history.RedoDepth(),
		Revision:        s.revision,
		Dirty:           s.revision != s.saved,
	}
}

// Block returns a copy of one block.
func (s *Session) Block(blockID string) (domain.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := blocks.Find(s.doc.Blocks, blockID)
	return b.Clone(), ok
}

// ChildrenOf returns the ordered children of parentID ("" for roots).
func (s *Session) ChildrenOf(parentID string) []domain.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	kids := blocks.ChildrenOf(s.doc.Blocks, parentID)
	for i := range kids {
		kids[i] = kids[i].Clone()
	}
	return kids
}

// Tree returns the nested block tree for rendering.
func (s *Session) Tree() []blocks.Node {
	doc := s.ExportBuilderData()
	return blocks.Tree(doc.Blocks)
}

// SelectedBlock returns the selected block, if any.
func (s *Session) SelectedBlock() (domain.Block, bool) {
	s.mu.Lock()
	id := s.selected
	s.mu.Unlock()
	if id == "" {
		return domain.Block{}, false
	}
	return s.Block(id)
}

// Device returns the active device class.
func (s *Session) Device() domain.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// Revision is a counter bumped by every document change.
func (s *Session) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Dirty reports whether the document changed since it was loaded or last
// marked saved.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision != s.saved
}

// MarkSaved records that revision has been persisted. Later revisions keep
// the session dirty.
func (s *Session) MarkSaved(revision uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if revision > s.saved && revision <= s.revision {
		s.saved = revision
	}
}

// ExportWithRevision returns a copy of the document together with the
// revision it belongs to, for savers that call MarkSaved afterwards.
func (s *Session) ExportWithRevision() (domain.Document, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone(), s.revision
}
