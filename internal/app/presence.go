package app

import (
	"context"
	"time"

	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/domain"
	"github.com/dkeye/roomgate/internal/metrics"
	apperrors "github.com/dkeye/roomgate/internal/platform/errors"
	"github.com/rs/zerolog/log"
)

// PresenceTracker owns voice-topic membership changes and tells the other
// members about them.
type PresenceTracker struct {
	registry *Registry
	channels core.ChannelStore
	identity IdentityResolver
	timeout  time.Duration
}

func NewPresenceTracker(reg *Registry, channels core.ChannelStore, identity IdentityResolver, timeout time.Duration) *PresenceTracker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PresenceTracker{registry: reg, channels: channels, identity: identity, timeout: timeout}
}

// Join places sess in the voice topic of channelID and announces it to every
// other current member. Joining twice announces nothing.
func (p *PresenceTracker) Join(ctx context.Context, sess core.MemberSession, channelID domain.ChannelID) (core.PublishResult, error) {
	ch, err := lookupChannel(ctx, p.channels, channelID, p.timeout)
	if err != nil {
		return core.PublishResult{}, err
	}
	if !ch.IsVoice() {
		return core.PublishResult{}, apperrors.ValidationError("channel is not a voice channel")
	}

	topic := domain.VoiceTopic(ch.ID)
	added, err := p.registry.Join(sess.ID(), topic)
	if err != nil {
		return core.PublishResult{}, apperrors.InternalError("failed to join voice", err)
	}
	if !added {
		return core.PublishResult{}, nil
	}

	dctx, cancel := context.WithTimeout(ctx, p.timeout)
	user := p.identity.Display(dctx, sess.UserID())
	cancel()
	frame, err := core.Encode(core.VoiceJoinedEvent{
		Type:         core.EventUserJoinedVoice,
		ConnectionID: sess.ID(),
		UserID:       sess.UserID(),
		DisplayName:  user.DisplayName(),
	})
	if err != nil {
		return core.PublishResult{}, apperrors.InternalError("failed to encode presence", err)
	}
	res := core.Publish(p.registry.Members(topic), sess.ID(), frame)
	metrics.PresenceEvents.WithLabelValues(core.EventUserJoinedVoice).Add(float64(res.SendTo))
	log.Info().Str("module", "app.presence").Str("conn", string(sess.ID())).
		Str("topic", topic.String()).Int("notified", res.SendTo).Msg("joined voice")
	return res, nil
}

// Leave removes id from the voice topic of channelID. Leaving a topic the
// connection is not in announces nothing.
func (p *PresenceTracker) Leave(id core.ConnID, channelID domain.ChannelID) core.PublishResult {
	topic := domain.VoiceTopic(channelID)
	if !p.registry.Leave(id, topic) {
		return core.PublishResult{}
	}
	return p.notifyLeft(id, topic)
}

// NotifyPurged announces the departure of a purged connection from each of
// its former voice topics.
func (p *PresenceTracker) NotifyPurged(id core.ConnID, voice []domain.Topic) core.PublishResult {
	var res core.PublishResult
	for _, t := range voice {
		res.Merge(p.notifyLeft(id, t))
	}
	return res
}

func (p *PresenceTracker) notifyLeft(id core.ConnID, t domain.Topic) core.PublishResult {
	frame, err := core.Encode(core.VoiceLeftEvent{Type: core.EventUserLeftVoice, ConnectionID: id})
	if err != nil {
		return core.PublishResult{}
	}
	res := core.Publish(p.registry.Members(t), id, frame)
	metrics.PresenceEvents.WithLabelValues(core.EventUserLeftVoice).Add(float64(res.SendTo))
	log.Info().Str("module", "app.presence").Str("conn", string(id)).
		Str("topic", t.String()).Int("notified", res.SendTo).Msg("left voice")
	return res
}

// ListMembers returns the roster of a topic in join order.
func (p *PresenceTracker) ListMembers(t domain.Topic) []core.MemberDTO {
	return p.registry.ListMembers(t)
}
