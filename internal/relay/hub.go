package relay

import (
	"fmt"
	"sync"

	"github.com/SuperJunier666/Chatroom/internal/event"
)

// Sender is the minimal interface the hub needs from a connection: the
// ability to queue outbound envelopes. Implementations must not block; the
// websocket transport backs this with a buffered channel drained by a write
// pump.
type Sender interface {
	Send(event.Envelope) error
}

// Hub holds the senders for every live connection, joined or not, so the
// relay can push events without touching transport details. The presence
// registry decides who a username is; the hub only knows connection IDs.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]Sender
}

// NewHub creates a new hub instance.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]Sender)}
}

// Attach registers a connection's sender under its connection ID.
func (h *Hub) Attach(connID string, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[connID] = s
}

// Detach removes a previously-attached connection.
func (h *Hub) Detach(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
}

// Send delivers an envelope to one connection. A failed send detaches the
// connection so stale senders don't linger in the hub.
func (h *Hub) Send(connID string, env event.Envelope) error {
	h.mu.RLock()
	s, ok := h.conns[connID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("connection %s not attached", connID)
	}
	if err := s.Send(env); err != nil {
		h.Detach(connID)
		return err
	}
	return nil
}

// Broadcast delivers an envelope to every connection, best-effort. Failing
// connections are detached; the first error encountered is returned.
func (h *Hub) Broadcast(env event.Envelope) error {
	return h.broadcast(env, "")
}

// BroadcastExcept delivers an envelope to every connection except one,
// typically the originator of a presence signal.
func (h *Hub) BroadcastExcept(exceptConnID string, env event.Envelope) error {
	return h.broadcast(env, exceptConnID)
}

func (h *Hub) broadcast(env event.Envelope, except string) error {
	h.mu.RLock()
	targets := make(map[string]Sender, len(h.conns))
	for id, s := range h.conns {
		if id != except {
			targets[id] = s
		}
	}
	h.mu.RUnlock()

	var firstErr error
	var failedIDs []string

	// Keep trying the rest after a failure so one broken connection cannot
	// starve the room.
	for id, s := range targets {
		if err := s.Send(env); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failedIDs = append(failedIDs, id)
		}
	}

	for _, id := range failedIDs {
		h.Detach(id)
	}

	return firstErr
}

// Len returns the number of attached connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
