// Package metrics holds the gateway's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection metrics
var (
	// ConnectionsActive tracks admitted websocket connections.
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_connections_active",
			Help: "Number of admitted gateway connections",
		},
	)

	// AuthRejections counts refused connect attempts by reason.
	AuthRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_auth_rejections_total",
			Help: "Connect attempts rejected by the authenticator, by reason",
		},
		[]string{"reason"},
	)

	// SlowMembersKicked counts connections closed by the backpressure policy.
	SlowMembersKicked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_slow_members_kicked_total",
			Help: "Connections closed because their outbound queue was full",
		},
	)
)

// Event metrics
var (
	// MessagesTotal counts send_message outcomes (persisted, rejected kinds).
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_messages_total",
			Help: "Chat messages by outcome",
		},
		[]string{"outcome"},
	)

	// FanoutDeliveries counts per-recipient delivery results.
	FanoutDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_fanout_deliveries_total",
			Help: "Per-recipient fanout deliveries by result",
		},
		[]string{"result"},
	)

	// SignalsRelayed counts signaling envelopes by kind and result.
	SignalsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_signals_total",
			Help: "Signaling envelopes by kind and result (delivered, routing_miss, dropped)",
		},
		[]string{"kind", "result"},
	)

	// PresenceEvents counts presence notifications sent, by event.
	PresenceEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_presence_events_total",
			Help: "Presence notifications delivered, by event",
		},
		[]string{"event"},
	)

	// InboundRateLimited counts inbound events refused by the per-connection limiter.
	InboundRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_inbound_rate_limited_total",
			Help: "Inbound events rejected by the per-connection rate limiter",
		},
	)
)

// Store metrics
var (
	// StoreOpDuration tracks persistence latency in seconds.
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Persistence operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation", "status"},
	)

	// CircuitBreakerState tracks the store breaker (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_circuit_breaker_state",
			Help: "Current store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)
