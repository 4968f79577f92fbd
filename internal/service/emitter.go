package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Event names emitted by the services.
const (
	EventBuilderChanged   = "builder:changed"
	EventBuilderSelection = "builder:selection"
	EventSessionOpened    = "session:opened"
	EventSessionClosed    = "session:closed"
	EventDocumentSaved    = "document:saved"
	EventDocumentReloaded = "document:reloaded"
	EventDocumentDeleted  = "document:deleted"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from the transport
// ─────────────────────────────────────────────────────────────

// EventEmitter is an interface for publishing events to whatever front end
// is attached (MCP notifications, logs). Services receive this interface,
// which makes them independently testable with a mock emitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Names returns the recorded event names in order.
func (m *MockEmitter) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Event
	}
	return out
}

// Count returns how many times event was emitted.
func (m *MockEmitter) Count(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Events {
		if e.Event == event {
			n++
		}
	}
	return n
}

// LogEmitter writes every event to a zap logger at debug level.
type LogEmitter struct {
	Logger *zap.Logger
}

func (l LogEmitter) Emit(_ context.Context, event string, data any) {
	if l.Logger == nil {
		return
	}
	l.Logger.Debug("event", zap.String("event", event), zap.Any("data", data))
}

// MultiEmitter fans an event out to several emitters.
type MultiEmitter []EventEmitter

func (m MultiEmitter) Emit(ctx context.Context, event string, data any) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, event, data)
		}
	}
}
