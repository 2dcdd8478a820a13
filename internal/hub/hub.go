// Package hub fans out board events to every connected client session
// over websockets.
package hub

import (
	"log/slog"
	"sync"

	"github.com/flowdeck-dev/flowdeck/pkg/schema"
)

// Hub is the registry of live client sessions. Sessions register at
// connect time and deregister on disconnect; Broadcast pushes an event
// to every session currently in the registry, including the one whose
// request caused it.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

// Register adds a session to the registry.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()

	slog.Info("session connected", slog.String("session", s.ID), slog.String("user", s.User.ID))
}

// Deregister removes a session and closes its send channel. Calling it
// for an already-removed session is a no-op.
func (h *Hub) Deregister(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s.ID]
	if ok {
		delete(h.sessions, s.ID)
		s.close()
	}
	h.mu.Unlock()

	if ok {
		slog.Info("session disconnected", slog.String("session", s.ID), slog.String("user", s.User.ID))
	}
}

// Broadcast pushes an event to all live sessions. Delivery is
// best-effort: a session whose send buffer is full simply misses this
// event, and one dead session never blocks the others.
func (h *Hub) Broadcast(ev schema.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.sessions {
		select {
		case s.send <- ev:
		default:
			slog.Warn("dropping event for slow session", slog.String("session", s.ID), slog.String("event", string(ev.Kind)))
		}
	}
}

// Count returns the number of connected sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
