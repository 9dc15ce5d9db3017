package orch

import (
	"errors"

	"github.com/dkeye/roomgate/internal/app"
	apperrors "github.com/dkeye/roomgate/internal/platform/errors"
	"github.com/rs/zerolog/log"
)

// Signal relays a negotiation envelope. A missing target is dropped
// silently; only malformed envelopes produce an error.
func (o *Orchestrator) Signal(env app.Envelope) error {
	res, err := o.Relay.Relay(env)
	if errors.Is(err, apperrors.ErrRoutingMiss) {
		log.Debug().Str("module", "orch").Str("conn", string(env.Sender)).
			Str("target", string(env.Target)).Str("kind", string(env.Kind)).Msg("dropped signal for unknown target")
		return nil
	}
	if err != nil {
		return err
	}
	o.applyPolicy(res)
	return nil
}
