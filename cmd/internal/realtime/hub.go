package realtime

import (
	"log/slog"

	"twidder/cmd/internal/wall"
)

// Hub fans posted messages out to the recipient's bound connections.
// It implements wall.Broadcaster.
//
// Concurrency guarantees:
// - PushMessage never blocks (drops under backpressure).
// - PushMessage is panic-safe because Client.Send is never closed by the
//   server.
type Hub struct {
	log *slog.Logger
	reg *Registry
}

// NewHub constructs a hub over the given registry.
func NewHub(log *slog.Logger, reg *Registry) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if reg == nil {
		reg = NewRegistry(log)
	}
	return &Hub{log: log, reg: reg}
}

// Registry returns the registry this hub fans out over.
func (h *Hub) Registry() *Registry {
	if h == nil {
		return nil
	}
	return h.reg
}

// PushMessage delivers one posted message to every connection bound to
// recipient, excluding origin. Fire-and-forget: a full queue or a closing
// connection counts as a drop and is reported to metrics and logs only.
func (h *Hub) PushMessage(recipient, writer, content string, origin wall.Conn) {
	if h == nil || recipient == "" {
		return
	}

	frame := pushFrame(recipient, writer, content)
	if frame == nil {
		return
	}

	for _, b := range h.reg.AllExcept(origin) {
		if b.Email != recipient || b.Client == nil {
			continue
		}

		select {
		case <-b.Client.Done():
			// Skip connections that are shutting down.
			pushDropped.Inc()
			continue
		default:
		}

		select {
		case b.Client.Send <- frame:
			pushDelivered.Inc()
		default:
			// Drop rather than block the poster.
			pushDropped.Inc()
			h.log.Info("hub.push.drop", "conn_id", b.Client.ConnID(), "recipient", recipient)
		}
	}
}
