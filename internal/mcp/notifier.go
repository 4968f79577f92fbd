package mcpserver

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mark3labs/mcp-go/server"
)

// NotificationMethod is the JSON-RPC method of builder event notifications.
const NotificationMethod = "notifications/builder/event"

// Notifier is a service.EventEmitter that forwards events to every connected
// MCP client. Events emitted before a server is attached are dropped.
type Notifier struct {
	mu  sync.RWMutex
	srv *server.MCPServer
}

// NewNotifier creates a detached Notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Attach binds the notifier to a server.
func (n *Notifier) Attach(srv *server.MCPServer) {
	n.mu.Lock()
	n.srv = srv
	n.mu.Unlock()
}

func (n *Notifier) Emit(_ context.Context, event string, data any) {
	n.mu.RLock()
	srv := n.srv
	n.mu.RUnlock()
	if srv == nil {
		return
	}
	srv.SendNotificationToAllClients(NotificationMethod, map[string]any{
		"event": event,
		"data":  toParams(data),
	})
}

// toParams round-trips data through JSON so structs reach clients with
// their json field names.
func toParams(data any) any {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
