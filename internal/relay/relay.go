// Package relay dispatches public broadcasts and private message deliveries.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/SuperJunier666/Chatroom/internal/data"
	"github.com/SuperJunier666/Chatroom/internal/event"
	"github.com/SuperJunier666/Chatroom/internal/metrics"
	"github.com/SuperJunier666/Chatroom/internal/presence"
)

// Store is the persistence collaborator consumed by the relay. The MongoDB
// MessagesStore implements it; tests use in-memory fakes.
type Store interface {
	AppendPublic(ctx context.Context, username, body string) (time.Time, error)
	AppendPrivate(ctx context.Context, sender, recipient, body string, delivered bool) (time.Time, error)
	FetchUndelivered(ctx context.Context, recipient string) ([]*data.PrivateMessage, error)
	MarkDelivered(ctx context.Context, recipient string) error
	ListPublicHistory(ctx context.Context, limit int64) ([]*data.PublicMessage, error)
}

// Relay addresses deliveries through the presence registry and stores
// messages via the persistence collaborator. It never holds a lock across
// store calls.
type Relay struct {
	registry *presence.Registry
	hub      *Hub
	store    Store
	log      *slog.Logger
}

// NewRelay returns a relay wired to the registry, hub and store.
func NewRelay(registry *presence.Registry, hub *Hub, store Store, log *slog.Logger) *Relay {
	return &Relay{registry: registry, hub: hub, store: store, log: log}
}

// BroadcastPublic stores a public message and delivers it to every
// connection, sender included — the echo confirms receipt order to the
// sender.
func (r *Relay) BroadcastPublic(ctx context.Context, username, body string) (time.Time, error) {
	ts, err := r.store.AppendPublic(ctx, username, body)
	if err != nil {
		return time.Time{}, err
	}

	env := event.Envelope{
		Event: event.ChatMessage,
		Data: event.ChatMessageBroadcast{
			Username:  username,
			Message:   body,
			Timestamp: ts,
		},
	}
	if err := r.hub.Broadcast(env); err != nil {
		// Stored already; a failing recipient connection is its own problem.
		r.log.Warn("public broadcast partially failed", "error", err)
	}
	metrics.MessagesRelayed.WithLabelValues("public").Inc()
	return ts, nil
}

// SendPrivate stores a private message and delivers it if the recipient is
// online. Messages to offline recipients are never dropped, only deferred to
// the backlog. The sender always gets a send confirmation.
func (r *Relay) SendPrivate(ctx context.Context, senderConnID, sender, recipient, body string) error {
	recipientConn, online := r.registry.ConnByUsername(recipient)

	ts, err := r.store.AppendPrivate(ctx, sender, recipient, body, online)
	if err != nil {
		return err
	}

	if online {
		delivery := event.Envelope{
			Event: event.PrivateMessage,
			Data: event.PrivateMessageDelivery{
				SenderUsername: sender,
				Message:        body,
				Timestamp:      ts,
			},
		}
		if err := r.hub.Send(recipientConn, delivery); err != nil {
			r.log.Warn("private delivery failed", "recipient", recipient, "error", err)
		}
	}

	confirmation := event.Envelope{
		Event: event.PrivateMessageSent,
		Data: event.PrivateMessageSentPayload{
			RecipientUsername: recipient,
			Message:           body,
			Timestamp:         ts,
		},
	}
	if err := r.hub.Send(senderConnID, confirmation); err != nil {
		r.log.Warn("send confirmation failed", "sender", sender, "error", err)
	}

	metrics.MessagesRelayed.WithLabelValues("private").Inc()
	return nil
}

// ReplayBacklog delivers every undelivered private message addressed to
// username as a missed-message event, then marks them delivered so they are
// never replayed again.
func (r *Relay) ReplayBacklog(ctx context.Context, username, connID string) error {
	backlog, err := r.store.FetchUndelivered(ctx, username)
	if err != nil {
		return err
	}
	if len(backlog) == 0 {
		return nil
	}

	envelopes := lo.Map(backlog, func(msg *data.PrivateMessage, _ int) event.Envelope {
		return event.Envelope{
			Event: event.MissedPrivateMessage,
			Data: event.PrivateMessageDelivery{
				SenderUsername: msg.Sender,
				Message:        msg.Body,
				Timestamp:      msg.SentAt,
			},
		}
	})
	for _, env := range envelopes {
		if err := r.hub.Send(connID, env); err != nil {
			// The user is gone again; leave the backlog unmarked so the
			// remaining messages replay on the next join.
			return err
		}
		metrics.BacklogReplayed.Inc()
	}

	return r.store.MarkDelivered(ctx, username)
}

// RelayTyping fans a typing signal out to every connection except the
// sender. Best-effort: no persistence, no delivery guarantee.
func (r *Relay) RelayTyping(senderConnID, username string, isTyping bool) {
	name := event.Typing
	if !isTyping {
		name = event.StopTyping
	}
	env := event.Envelope{Event: name, Data: event.UsernamePayload{Username: username}}
	if err := r.hub.BroadcastExcept(senderConnID, env); err != nil {
		r.log.Debug("typing fan-out partially failed", "error", err)
	}
}
