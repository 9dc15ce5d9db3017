package signal

import (
	"github.com/dkeye/roomgate/internal/metrics"
	"golang.org/x/time/rate"
)

// EventLimiter bounds the inbound event rate of one connection. Keepalive
// pings are never limited.
type EventLimiter struct {
	limiter *rate.Limiter
}

func NewEventLimiter(eventsPerSecond float64, burst int) *EventLimiter {
	limit := rate.Limit(eventsPerSecond)
	if eventsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &EventLimiter{limiter: rate.NewLimiter(limit, burst)}
}

func (l *EventLimiter) Allow(eventType string) bool {
	if eventType == evPing {
		return true
	}
	if l.limiter.Allow() {
		return true
	}
	metrics.InboundRateLimited.Inc()
	return false
}
