// Package metrics exposes Prometheus instrumentation for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsReceived counts inbound client events by event name.
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatroom_events_received_total",
			Help: "Total inbound client events",
		},
		[]string{"event"},
	)

	// MessagesRelayed counts delivered chat messages.
	MessagesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatroom_messages_relayed_total",
			Help: "Total chat messages relayed",
		},
		[]string{"kind"}, // "public" or "private"
	)

	// BacklogReplayed counts missed private messages replayed on join.
	BacklogReplayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatroom_backlog_replayed_total",
			Help: "Total missed private messages replayed to reconnecting users",
		},
	)

	// MalformedEvents counts inbound frames dropped for bad shape.
	MalformedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatroom_malformed_events_total",
			Help: "Total inbound events dropped as malformed",
		},
	)

	// RateLimitDrops counts events dropped by the per-connection limiter.
	RateLimitDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatroom_rate_limit_drops_total",
			Help: "Total events dropped by rate limiting",
		},
	)

	// OnlineUsers tracks the number of joined users.
	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatroom_online_users",
			Help: "Users currently registered in the presence registry",
		},
	)

	// ActiveSessions tracks the number of live private chat pairings.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatroom_active_private_sessions",
			Help: "Private chat sessions currently active",
		},
	)
)
