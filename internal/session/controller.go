// Package session maps inbound client events onto the presence registry,
// the pairing state machine and the message relay.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/SuperJunier666/Chatroom/internal/event"
	"github.com/SuperJunier666/Chatroom/internal/metrics"
	"github.com/SuperJunier666/Chatroom/internal/middleware"
	"github.com/SuperJunier666/Chatroom/internal/normalize"
	"github.com/SuperJunier666/Chatroom/internal/pairing"
	"github.com/SuperJunier666/Chatroom/internal/presence"
	"github.com/SuperJunier666/Chatroom/internal/relay"
)

// Controller is the entry point for all inbound events. State transitions
// that span the registry and the pairing machine run under a single mutex so
// an accept can never interleave with a concurrent disconnect of its target;
// persistence and delivery happen outside the critical section.
type Controller struct {
	mu       sync.Mutex
	registry *presence.Registry
	pairing  *pairing.Machine
	relay    *relay.Relay
	hub      *relay.Hub
	limiter  *middleware.LimiterStore
	validate *validator.Validate
	log      *slog.Logger
}

// NewController wires a controller. The limiter is keyed by connection ID
// and applied to message-bearing events only.
func NewController(registry *presence.Registry, machine *pairing.Machine, r *relay.Relay, hub *relay.Hub, limiter *middleware.LimiterStore, log *slog.Logger) *Controller {
	return &Controller{
		registry: registry,
		pairing:  machine,
		relay:    r,
		hub:      hub,
		limiter:  limiter,
		validate: validator.New(),
		log:      log,
	}
}

// Connect attaches a new connection and greets it. The connection is not
// present in the registry until it joins.
func (c *Controller) Connect(connID string, s relay.Sender) {
	c.hub.Attach(connID, s)
	_ = c.hub.Send(connID, event.Envelope{
		Event: event.Connected,
		Data:  event.ConnectedPayload{Data: "Connected"},
	})
	c.log.Debug("client connected", "conn", connID)
}

// Disconnect tears down whatever state the connection held: its private
// session (peer notified with the distinct disconnect signal), its presence
// entry, and its hub attachment. The updated user list is broadcast
// unconditionally, even for connections that never joined.
func (c *Controller) Disconnect(connID string) {
	c.mu.Lock()
	username, joined := c.registry.UsernameByConn(connID)
	var peerConn string
	var notifyPeer bool
	if joined {
		res := c.pairing.Disconnect(username)
		if res.WasActive {
			peerConn, notifyPeer = c.registry.ConnByUsername(res.Peer)
		}
		c.registry.Leave(connID)
	}
	users := c.registry.Usernames()
	c.mu.Unlock()

	c.hub.Detach(connID)
	c.limiter.Forget(connID)

	if notifyPeer {
		_ = c.hub.Send(peerConn, event.Envelope{
			Event: event.PrivateChatEndedByDisconnect,
			Data:  event.PrivateChatEndedPayload{Username: username},
		})
	}

	_ = c.hub.Broadcast(event.Envelope{
		Event: event.UserList,
		Data:  event.UserListPayload{Users: users},
	})

	metrics.OnlineUsers.Set(float64(c.registry.Count()))
	metrics.ActiveSessions.Set(float64(c.pairing.ActiveSessions()))
	c.log.Debug("client disconnected", "conn", connID, "username", username)
}

// HandleEvent dispatches one inbound frame. A malformed frame is dropped
// with no side effect; it never crashes the controller or corrupts state.
func (c *Controller) HandleEvent(ctx context.Context, connID string, raw []byte) {
	name, payload, err := event.Decode(raw)
	if err != nil {
		metrics.MalformedEvents.Inc()
		c.log.Debug("dropping malformed frame", "conn", connID, "error", err)
		return
	}
	// Keep the label set bounded against client-supplied event names.
	label := name
	if !event.Known(name) {
		label = "unknown"
	}
	metrics.EventsReceived.WithLabelValues(label).Inc()

	switch name {
	case event.Join:
		c.handleJoin(ctx, connID, payload)
	case event.ChatMessage:
		c.handleChatMessage(ctx, connID, payload)
	case event.PrivateChatRequest:
		c.handlePrivateChatRequest(connID, payload)
	case event.PrivateChatAccept:
		c.handlePrivateChatAccept(connID, payload)
	case event.PrivateChatReject:
		c.handlePrivateChatReject(connID, payload)
	case event.PrivateChatEnd:
		c.handlePrivateChatEnd(connID)
	case event.PrivateMessage:
		c.handlePrivateMessage(ctx, connID, payload)
	case event.Typing:
		c.handleTyping(connID, true)
	case event.StopTyping:
		c.handleTyping(connID, false)
	default:
		c.log.Debug("ignoring unknown event", "conn", connID, "event", name)
	}
}

// decode unmarshals and validates a payload; invalid payloads are dropped.
func (c *Controller) decode(payload json.RawMessage, v any) bool {
	if err := json.Unmarshal(payload, v); err != nil {
		metrics.MalformedEvents.Inc()
		return false
	}
	if err := c.validate.Struct(v); err != nil {
		metrics.MalformedEvents.Inc()
		return false
	}
	return true
}

func (c *Controller) handleJoin(ctx context.Context, connID string, payload json.RawMessage) {
	var p event.JoinPayload
	if !c.decode(payload, &p) {
		return
	}
	username := normalize.Username(p.Username)
	if username == "" {
		metrics.MalformedEvents.Inc()
		return
	}

	c.mu.Lock()
	var prevName, peerConn string
	var notifyPeer bool
	taken := c.registry.IsOnline(username)
	if !taken {
		// A connection that re-joins under a new name gives up its old
		// identity; any session held under it ends as if it disconnected.
		if prev, rejoining := c.registry.UsernameByConn(connID); rejoining {
			prevName = prev
			res := c.pairing.Disconnect(prev)
			if res.WasActive {
				peerConn, notifyPeer = c.registry.ConnByUsername(res.Peer)
			}
		}
		_ = c.registry.Join(connID, username)
	}
	users := c.registry.Usernames()
	c.mu.Unlock()

	if taken {
		_ = c.hub.Send(connID, event.Envelope{
			Event: event.UsernameTaken,
			Data:  event.UsernamePayload{Username: username},
		})
		return
	}
	if notifyPeer {
		_ = c.hub.Send(peerConn, event.Envelope{
			Event: event.PrivateChatEndedByDisconnect,
			Data:  event.PrivateChatEndedPayload{Username: prevName},
		})
	}

	_ = c.hub.Send(connID, event.Envelope{
		Event: event.JoinSuccessful,
		Data:  event.UsernamePayload{Username: username},
	})
	_ = c.hub.Broadcast(event.Envelope{
		Event: event.UserList,
		Data:  event.UserListPayload{Users: users},
	})
	_ = c.hub.BroadcastExcept(connID, event.Envelope{
		Event: event.UserJoined,
		Data:  event.UsernamePayload{Username: username},
	})
	metrics.OnlineUsers.Set(float64(c.registry.Count()))

	if err := c.relay.ReplayBacklog(ctx, username, connID); err != nil {
		c.log.Error("backlog replay failed", "username", username, "error", err)
	}
	c.log.Info("user joined", "username", username)
}

func (c *Controller) handleChatMessage(ctx context.Context, connID string, payload json.RawMessage) {
	var p event.ChatMessagePayload
	if !c.decode(payload, &p) {
		return
	}
	if !c.limiter.Allow(connID) {
		metrics.RateLimitDrops.Inc()
		c.log.Debug("rate limited chat message", "conn", connID)
		return
	}
	if _, err := c.relay.BroadcastPublic(ctx, normalize.Username(p.Username), p.Message); err != nil {
		c.log.Error("public message store failed", "error", err)
	}
}

func (c *Controller) handlePrivateChatRequest(connID string, payload json.RawMessage) {
	sender, ok := c.registry.UsernameByConn(connID)
	if !ok {
		return
	}
	var p event.PrivateChatRequestPayload
	if !c.decode(payload, &p) {
		return
	}
	recipient := normalize.Username(p.RecipientUsername)

	c.mu.Lock()
	err := c.pairing.Request(sender, recipient)
	recipientConn, _ := c.registry.ConnByUsername(recipient)
	c.mu.Unlock()

	switch {
	case errors.Is(err, pairing.ErrSelfBusy):
		c.sendChatError(connID, event.PrivateChatRequestFailed, event.ErrCodeYouAreBusy,
			"you are already in a private chat and cannot start another")
	case errors.Is(err, pairing.ErrRecipientBusy):
		c.sendChatError(connID, event.PrivateChatRequestFailed, event.ErrCodeRecipientBusy,
			fmt.Sprintf("%s is already in a private chat", recipient))
	case errors.Is(err, pairing.ErrRecipientOffline):
		c.sendChatError(connID, event.PrivateChatRequestFailed, event.ErrCodeUserOffline,
			fmt.Sprintf("%s is not online", recipient))
	case err == nil:
		_ = c.hub.Send(recipientConn, event.Envelope{
			Event: event.PrivateChatRequest,
			Data:  event.PrivateChatRequestNotice{SenderUsername: sender},
		})
	}
}

func (c *Controller) handlePrivateChatAccept(connID string, payload json.RawMessage) {
	accepter, ok := c.registry.UsernameByConn(connID)
	if !ok {
		return
	}
	var p event.PrivateChatAcceptPayload
	if !c.decode(payload, &p) {
		return
	}
	requester := normalize.Username(p.SenderUsername)

	c.mu.Lock()
	err := c.pairing.Accept(accepter, requester)
	requesterConn, _ := c.registry.ConnByUsername(requester)
	c.mu.Unlock()

	switch {
	case errors.Is(err, pairing.ErrRequesterOffline):
		c.sendChatError(connID, event.PrivateChatAcceptFailed, event.ErrCodeSenderOffline,
			fmt.Sprintf("%s has gone offline", requester))
	case err != nil:
		c.sendChatError(connID, event.PrivateChatAcceptFailed, event.ErrCodeSessionConflict,
			"session conflict, please try again")
	default:
		_ = c.hub.Send(requesterConn, event.Envelope{
			Event: event.PrivateChatStarted,
			Data:  event.OtherUserPayload{OtherUser: accepter},
		})
		_ = c.hub.Send(connID, event.Envelope{
			Event: event.PrivateChatStarted,
			Data:  event.OtherUserPayload{OtherUser: requester},
		})
		metrics.ActiveSessions.Set(float64(c.pairing.ActiveSessions()))
		c.log.Info("private chat started", "requester", requester, "accepter", accepter)
	}
}

func (c *Controller) handlePrivateChatReject(connID string, payload json.RawMessage) {
	rejecter, ok := c.registry.UsernameByConn(connID)
	if !ok {
		return
	}
	var p event.PrivateChatRejectPayload
	if !c.decode(payload, &p) {
		return
	}
	requester := normalize.Username(p.SenderUsername)

	c.mu.Lock()
	c.pairing.Reject(rejecter, requester)
	requesterConn, online := c.registry.ConnByUsername(requester)
	c.mu.Unlock()

	if online {
		_ = c.hub.Send(requesterConn, event.Envelope{
			Event: event.PrivateChatRejected,
			Data:  event.PrivateChatRejectedPayload{RecipientUsername: rejecter},
		})
	}
}

func (c *Controller) handlePrivateChatEnd(connID string) {
	username, ok := c.registry.UsernameByConn(connID)
	if !ok {
		return
	}

	c.mu.Lock()
	peer, ended := c.pairing.End(username)
	var peerConn string
	var peerOnline bool
	if ended {
		peerConn, peerOnline = c.registry.ConnByUsername(peer)
	}
	c.mu.Unlock()

	if !ended {
		return
	}

	if peerOnline {
		_ = c.hub.Send(peerConn, event.Envelope{
			Event: event.PrivateChatEndedByOther,
			Data:  event.PrivateChatEndedPayload{Username: username},
		})
	}
	_ = c.hub.Send(connID, event.Envelope{
		Event: event.PrivateChatEndedConfirmed,
		Data:  event.OtherUserPayload{OtherUser: peer},
	})
	metrics.ActiveSessions.Set(float64(c.pairing.ActiveSessions()))
}

func (c *Controller) handlePrivateMessage(ctx context.Context, connID string, payload json.RawMessage) {
	sender, ok := c.registry.UsernameByConn(connID)
	if !ok {
		return
	}
	var p event.PrivateMessagePayload
	if !c.decode(payload, &p) {
		return
	}
	if !c.limiter.Allow(connID) {
		metrics.RateLimitDrops.Inc()
		c.log.Debug("rate limited private message", "conn", connID)
		return
	}

	recipient := normalize.Username(p.ReceiverUsername)
	if err := c.relay.SendPrivate(ctx, connID, sender, recipient, p.Message); err != nil {
		c.log.Error("private message store failed", "sender", sender, "error", err)
	}
}

func (c *Controller) handleTyping(connID string, isTyping bool) {
	username, ok := c.registry.UsernameByConn(connID)
	if !ok {
		return
	}
	c.relay.RelayTyping(connID, username, isTyping)
}

func (c *Controller) sendChatError(connID, eventName, code, message string) {
	_ = c.hub.Send(connID, event.Envelope{
		Event: eventName,
		Data:  event.ChatErrorPayload{Error: code, Message: message},
	})
}
