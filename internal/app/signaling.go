package app

import (
	"encoding/json"

	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/domain"
	"github.com/dkeye/roomgate/internal/metrics"
	apperrors "github.com/dkeye/roomgate/internal/platform/errors"
	"github.com/rs/zerolog/log"
)

// Envelope is one negotiation message in flight. It is never stored.
type Envelope struct {
	Kind      domain.SignalKind
	Sender    core.ConnID
	Target    core.ConnID
	ChannelID *int64
	Payload   json.RawMessage
}

// SignalingRelay forwards envelopes point-to-point using the registry's
// connection table for routing.
type SignalingRelay struct {
	registry *Registry
}

func NewSignalingRelay(reg *Registry) *SignalingRelay {
	return &SignalingRelay{registry: reg}
}

// Relay delivers env to its target only, with the payload untouched. A
// target that is not connected yields apperrors.ErrRoutingMiss.
func (r *SignalingRelay) Relay(env Envelope) (core.PublishResult, error) {
	if env.Target == "" {
		return core.PublishResult{}, apperrors.ValidationError("targetConnectionId is required")
	}
	if len(env.Payload) == 0 {
		return core.PublishResult{}, apperrors.ValidationError("payload is required")
	}

	target, ok := r.registry.Lookup(env.Target)
	if !ok {
		metrics.SignalsRelayed.WithLabelValues(string(env.Kind), "routing_miss").Inc()
		log.Debug().Str("module", "app.signaling").Str("conn", string(env.Sender)).
			Str("target", string(env.Target)).Msg("signaling target not connected")
		return core.PublishResult{}, apperrors.ErrRoutingMiss
	}

	frame, err := core.Encode(core.SignalEvent{
		Type:               core.SignalEventType(env.Kind),
		SenderConnectionID: env.Sender,
		ChannelID:          env.ChannelID,
		Payload:            env.Payload,
	})
	if err != nil {
		return core.PublishResult{}, apperrors.ValidationError("payload is not valid JSON")
	}

	res := core.Publish([]core.MemberSession{target}, "", frame)
	result := "delivered"
	if len(res.Dropped) > 0 {
		result = "dropped"
	}
	metrics.SignalsRelayed.WithLabelValues(string(env.Kind), result).Inc()
	return res, nil
}
