package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"pagebuilder/internal/blocks"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/session"
)

// ErrSessionNotOpen is returned when a document has no open session.
var ErrSessionNotOpen = errors.New("session not open")

// ErrNoActiveSession is returned when no document id was given and no
// session is active.
var ErrNoActiveSession = errors.New("no active session")

// ─────────────────────────────────────────────────────────────
// SessionManager: one builder session per open document
// ─────────────────────────────────────────────────────────────

// SessionManager owns the open builder sessions, keyed by document id, and
// tracks which one is active.
type SessionManager struct {
	catalog      blocks.Catalog
	historyLimit int
	emitter      EventEmitter
	metrics      Metrics
	log          *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*session.Session
	active   string
}

// NewSessionManager creates a SessionManager. Every session it opens uses
// catalog and keeps at most historyLimit undo steps (0 = unbounded).
func NewSessionManager(catalog blocks.Catalog, historyLimit int, emitter EventEmitter, metrics Metrics, log *zap.Logger) *SessionManager {
	if log == nil {
		log = zap.NewNop()
	}
	if emitter == nil {
		emitter = LogEmitter{Logger: log}
	}
	return &SessionManager{
		catalog:      catalog,
		historyLimit: historyLimit,
		emitter:      emitter,
		metrics:      metricsOrNoop(metrics),
		log:          log,
		sessions:     make(map[string]*session.Session),
	}
}

// Open returns the session for documentID, creating it from doc when it is
// not open yet. The reported bool is true when a new session was created.
// The opened session becomes active.
func (m *SessionManager) Open(documentID string, doc domain.Document) (*session.Session, bool) {
	m.mu.Lock()
	if s, ok := m.sessions[documentID]; ok {
		m.active = documentID
		m.mu.Unlock()
		return s, false
	}

	s := session.New(documentID, m.catalog, session.Options{
		Logger:       m.log,
		HistoryLimit: m.historyLimit,
		Listeners:    []session.Listener{m.forward},
	})
	if rep := s.LoadBuilderData(doc); !rep.Clean() {
		m.log.Warn("document had malformed blocks",
			zap.String("documentId", documentID),
			zap.Int("dropped", rep.Dropped()))
	}
	m.sessions[documentID] = s
	m.active = documentID
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetOpenSessions(n)
	m.emitter.Emit(context.Background(), EventSessionOpened, documentID)
	m.log.Info("session opened", zap.String("documentId", documentID))
	return s, true
}

// Get returns the open session of documentID.
func (m *SessionManager) Get(documentID string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotOpen, documentID)
	}
	return s, nil
}

// Resolve returns the session of documentID, or the active session when
// documentID is empty.
func (m *SessionManager) Resolve(documentID string) (*session.Session, error) {
	if documentID != "" {
		return m.Get(documentID)
	}
	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()
	if active == "" {
		return nil, ErrNoActiveSession
	}
	return m.Get(active)
}

// SetActive makes an open session the active one.
func (m *SessionManager) SetActive(documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[documentID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotOpen, documentID)
	}
	m.active = documentID
	return nil
}

// Active returns the active document id, or "".
func (m *SessionManager) Active() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Close drops the session of documentID. Unsaved changes are discarded.
func (m *SessionManager) Close(documentID string) bool {
	m.mu.Lock()
	_, ok := m.sessions[documentID]
	delete(m.sessions, documentID)
	if m.active == documentID {
		m.active = ""
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if ok {
		m.metrics.SetOpenSessions(n)
		m.emitter.Emit(context.Background(), EventSessionClosed, documentID)
		m.log.Info("session closed", zap.String("documentId", documentID))
	}
	return ok
}

// IDs returns the open document ids, sorted.
func (m *SessionManager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Each calls fn for every open session in id order. fn may use the manager.
func (m *SessionManager) Each(fn func(*session.Session)) {
	for _, id := range m.IDs() {
		if s, err := m.Get(id); err == nil {
			fn(s)
		}
	}
}

// ── Session events ─────────────────────────────────────────

// BuilderEvent is the payload of builder:changed and builder:selection.
type BuilderEvent struct {
	DocumentID string `json:"documentId"`
	Action     string `json:"action"`
	Revision   uint64 `json:"revision"`
}

func (m *SessionManager) forward(ev session.Event) {
	m.metrics.ObserveAction(ev.Action, ev.Err)
	if ev.Err != nil {
		return
	}
	name := EventBuilderChanged
	if isSelectionAction(ev.Action) {
		name = EventBuilderSelection
	} else if !ev.Changed {
		return
	}
	m.emitter.Emit(context.Background(), name, BuilderEvent{
		DocumentID: ev.SessionID,
		Action:     ev.Action,
		Revision:   ev.Revision,
	})
}

func isSelectionAction(action string) bool {
	switch action {
	case session.ActionSelectBlock, session.ActionHoverBlock, session.ActionDragBlock,
		session.ActionSetDevice, session.ActionSetPreviewMode:
		return true
	}
	return false
}
