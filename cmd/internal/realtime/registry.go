package realtime

import (
	"log/slog"
	"sync"

	"twidder/cmd/internal/wall"
)

// Binding pairs a live connection with the identity it proved.
type Binding struct {
	Client *Client
	Email  string
}

// Registry tracks identity-bound connections.
//
// Concurrency guarantees:
// - Bind/Unbind are safe under concurrent AllExcept.
// - A connection appears at most once; re-binding updates its identity.
type Registry struct {
	log *slog.Logger

	mu    sync.RWMutex
	conns map[string]Binding
}

// NewRegistry constructs an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:   log,
		conns: make(map[string]Binding),
	}
}

// Bind attaches an identity to a connection. Idempotent: binding the same
// connection again (same or different identity) replaces the entry. A
// client that is already shutting down is not bound; its teardown may have
// unbound it already and must stay the last word.
func (r *Registry) Bind(c *Client, email string) {
	if r == nil || c == nil || c.ConnID() == "" || email == "" {
		return
	}

	select {
	case <-c.Done():
		return
	default:
	}

	r.mu.Lock()
	prev, rebound := r.conns[c.ConnID()]
	r.conns[c.ConnID()] = Binding{Client: c, Email: email}
	r.mu.Unlock()

	if rebound && prev.Email != email {
		r.log.Info("registry.rebind", "conn_id", c.ConnID(), "email", email, "prev", prev.Email)
		return
	}
	r.log.Info("registry.bind", "conn_id", c.ConnID(), "email", email)
}

// Unbind removes a connection (no-op when it was never bound).
func (r *Registry) Unbind(c *Client) {
	if r == nil || c == nil || c.ConnID() == "" {
		return
	}

	r.mu.Lock()
	_, bound := r.conns[c.ConnID()]
	delete(r.conns, c.ConnID())
	r.mu.Unlock()

	if bound {
		r.log.Info("registry.unbind", "conn_id", c.ConnID())
	}
}

// AllExcept returns a snapshot of every binding whose connection is not
// origin. A nil origin excludes nothing.
func (r *Registry) AllExcept(origin wall.Conn) []Binding {
	if r == nil {
		return nil
	}

	originID := ""
	if origin != nil {
		originID = origin.ConnID()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Binding, 0, len(r.conns))
	for id, b := range r.conns {
		if originID != "" && id == originID {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Len reports the number of bound connections.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
