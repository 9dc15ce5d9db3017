package orch

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/roomgate/internal/app"
	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/domain"
	apperrors "github.com/dkeye/roomgate/internal/platform/errors"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) session(sid core.ConnID) (core.MemberSession, error) {
	sess, ok := o.Registry.Lookup(sid)
	if !ok {
		return nil, apperrors.InternalError("connection is not registered", app.ErrUnknownConnection)
	}
	return sess, nil
}

// JoinTopic subscribes sid to t. Server topics require a persisted server
// membership; channel and voice topics require the channel to exist.
func (o *Orchestrator) JoinTopic(ctx context.Context, sid core.ConnID, t domain.Topic) error {
	sess, err := o.session(sid)
	if err != nil {
		return err
	}

	switch t.Kind {
	case domain.TopicVoice:
		return o.JoinVoice(ctx, sid, domain.ChannelID(t.ID))
	case domain.TopicServer:
		if err := o.checkServerMember(ctx, sess, domain.ServerID(t.ID)); err != nil {
			return err
		}
	case domain.TopicChannel:
		if err := o.checkChannel(ctx, domain.ChannelID(t.ID)); err != nil {
			return err
		}
	default:
		return apperrors.ValidationError("unknown topic kind")
	}

	if _, err := o.Registry.Join(sid, t); err != nil {
		return apperrors.InternalError("failed to join topic", err)
	}
	log.Info().Str("module", "orch").Str("conn", string(sid)).Str("user", sess.UserID().String()).
		Str("topic", t.String()).Msg("joined topic")
	return nil
}

// LeaveTopic unsubscribes sid from t. Leaving is idempotent.
func (o *Orchestrator) LeaveTopic(sid core.ConnID, t domain.Topic) {
	if t.IsVoice() {
		o.LeaveVoice(sid, domain.ChannelID(t.ID))
		return
	}
	if o.Registry.Leave(sid, t) {
		log.Info().Str("module", "orch").Str("conn", string(sid)).Str("topic", t.String()).Msg("left topic")
	}
}

func (o *Orchestrator) JoinVoice(ctx context.Context, sid core.ConnID, channelID domain.ChannelID) error {
	sess, err := o.session(sid)
	if err != nil {
		return err
	}
	res, err := o.Presence.Join(ctx, sess, channelID)
	o.applyPolicy(res)
	return err
}

func (o *Orchestrator) LeaveVoice(sid core.ConnID, channelID domain.ChannelID) {
	o.applyPolicy(o.Presence.Leave(sid, channelID))
}

func (o *Orchestrator) checkServerMember(ctx context.Context, sess core.MemberSession, id domain.ServerID) error {
	ctx, cancel := context.WithTimeout(ctx, o.storeTimeout())
	defer cancel()
	ok, err := o.Store.IsServerMember(ctx, id, sess.UserID())
	if err != nil {
		return apperrors.PersistenceError("failed to check server membership", err)
	}
	if !ok {
		return apperrors.AuthorizationError("not a member of this server")
	}
	return nil
}

func (o *Orchestrator) checkChannel(ctx context.Context, id domain.ChannelID) error {
	ctx, cancel := context.WithTimeout(ctx, o.storeTimeout())
	defer cancel()
	_, err := o.Store.GetChannel(ctx, id)
	switch {
	case errors.Is(err, domain.ErrChannelNotFound):
		return apperrors.NotFoundError("channel not found")
	case err != nil:
		return apperrors.PersistenceError("failed to load channel", err)
	}
	return nil
}

func (o *Orchestrator) storeTimeout() time.Duration {
	if o.StoreTimeout <= 0 {
		return 5 * time.Second
	}
	return o.StoreTimeout
}
