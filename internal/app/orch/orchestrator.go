package orch

import (
	"time"

	"github.com/dkeye/roomgate/internal/app"
	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/domain"
	"github.com/dkeye/roomgate/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Orchestrator is the single entry point the transport calls into. It owns
// no state of its own; membership lives in the Registry.
type Orchestrator struct {
	Registry *app.Registry
	Store    core.Store
	Fanout   *app.FanoutService
	Relay    *app.SignalingRelay
	Presence *app.PresenceTracker
	Policy   app.Policy

	// StoreTimeout bounds membership checks made on join.
	StoreTimeout time.Duration
}

func New(reg *app.Registry, store core.Store, identity app.IdentityResolver, policy app.Policy, storeTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		Registry:     reg,
		Store:        store,
		Fanout:       app.NewFanoutService(reg, store, identity, storeTimeout),
		Relay:        app.NewSignalingRelay(reg),
		Presence:     app.NewPresenceTracker(reg, store, identity, storeTimeout),
		Policy:       policy,
		StoreTimeout: storeTimeout,
	}
}

// Connect admits an authenticated session. Nothing else may be called for
// the connection before it returns successfully.
func (o *Orchestrator) Connect(sess core.MemberSession) error {
	if err := o.Registry.Register(sess); err != nil {
		return err
	}
	metrics.ConnectionsActive.Inc()
	return nil
}

// OnDisconnect purges every membership of sid and tells former voice peers.
// It is safe to call more than once.
func (o *Orchestrator) OnDisconnect(sid core.ConnID) {
	voice, ok := o.Registry.PurgeConnection(sid)
	if !ok {
		return
	}
	metrics.ConnectionsActive.Dec()
	o.applyPolicy(o.Presence.NotifyPurged(sid, voice))
}

// KickBySID closes the transport of sid and purges it.
func (o *Orchestrator) KickBySID(sid core.ConnID) {
	if sess, ok := o.Registry.Lookup(sid); ok {
		sess.Signal().Close()
	}
	o.OnDisconnect(sid)
}

// Shutdown disconnects every admitted session.
func (o *Orchestrator) Shutdown() {
	sessions := o.Registry.Sessions()
	for _, s := range sessions {
		o.KickBySID(s.ID())
	}
	log.Info().Str("module", "orch").Int("sessions", len(sessions)).Msg("all sessions closed")
}

// Topics lists the memberships of sid.
func (o *Orchestrator) Topics(sid core.ConnID) []domain.Topic {
	return o.Registry.TopicsOf(sid)
}

// ListMembers returns the roster of a topic for resynchronisation.
func (o *Orchestrator) ListMembers(t domain.Topic) []core.MemberDTO {
	return o.Presence.ListMembers(t)
}

func (o *Orchestrator) applyPolicy(res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("conn", string(slow.ID())).Msg("kicking slow member")
			metrics.SlowMembersKicked.Inc()
			o.KickBySID(slow.ID())
		case app.NoAction:
		}
	}
}
