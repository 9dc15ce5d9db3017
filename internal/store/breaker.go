package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/domain"
	"github.com/dkeye/roomgate/internal/metrics"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned without touching the backend while the breaker is open.
var ErrUnavailable = errors.New("store unavailable")

type BreakerSettings struct {
	MaxFailures uint
	OpenTimeout time.Duration
}

// BreakerStore guards a Store with a circuit breaker and records operation
// latency. Lookups that find nothing count as successes.
type BreakerStore struct {
	next core.Store
	cb   circuitbreaker.CircuitBreaker[any]
}

var _ core.Store = (*BreakerStore)(nil)

func WithBreaker(next core.Store, s BreakerSettings) *BreakerStore {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(s.MaxFailures).
		WithDelay(s.OpenTimeout).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			log.Warn().Str("module", "store.breaker").
				Str("from", e.OldState.String()).
				Str("to", e.NewState.String()).
				Msg("circuit breaker state changed")
			metrics.CircuitBreakerState.Set(stateToFloat(e.NewState))
		}).
		Build()
	return &BreakerStore{next: next, cb: cb}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func benign(err error) bool {
	return errors.Is(err, domain.ErrChannelNotFound) ||
		errors.Is(err, domain.ErrUserNotFound) ||
		errors.Is(err, context.Canceled)
}

func call[T any](b *BreakerStore, op string, fn func() (T, error)) (T, error) {
	var zero T
	if !b.cb.TryAcquirePermit() {
		metrics.StoreOpDuration.WithLabelValues(op, "rejected").Observe(0)
		return zero, fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	start := time.Now()
	v, err := fn()
	status := "ok"
	if err == nil || benign(err) {
		b.cb.RecordSuccess()
	} else {
		b.cb.RecordError(err)
		status = "error"
	}
	metrics.StoreOpDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return v, err
}

func (b *BreakerStore) GetChannel(ctx context.Context, id domain.ChannelID) (*domain.Channel, error) {
	return call(b, "get_channel", func() (*domain.Channel, error) { return b.next.GetChannel(ctx, id) })
}

func (b *BreakerStore) IsServerMember(ctx context.Context, serverID domain.ServerID, userID domain.UserID) (bool, error) {
	return call(b, "is_server_member", func() (bool, error) { return b.next.IsServerMember(ctx, serverID, userID) })
}

func (b *BreakerStore) CreateMessage(ctx context.Context, draft domain.MessageDraft) (*domain.Message, error) {
	return call(b, "create_message", func() (*domain.Message, error) { return b.next.CreateMessage(ctx, draft) })
}

func (b *BreakerStore) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return call(b, "get_user", func() (*domain.User, error) { return b.next.GetUser(ctx, id) })
}

// Ping bypasses the breaker so health checks see the backend's real state.
func (b *BreakerStore) Ping(ctx context.Context) error { return b.next.Ping(ctx) }

func (b *BreakerStore) Close() error { return b.next.Close() }
