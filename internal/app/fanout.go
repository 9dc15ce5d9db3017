package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/domain"
	"github.com/dkeye/roomgate/internal/metrics"
	apperrors "github.com/dkeye/roomgate/internal/platform/errors"
	"github.com/rs/zerolog/log"
)

// IdentityResolver supplies the display identity attached to outbound events.
type IdentityResolver interface {
	Display(ctx context.Context, id domain.UserID) *domain.User
}

// channelLock serializes persistence and enqueue for one channel. It is
// dropped from the map once no sender holds or waits on it.
type channelLock struct {
	mu   sync.Mutex
	refs int
}

// FanoutService persists chat messages and broadcasts them to the channel
// topic. A channel's lock is held from persistence until every recipient
// queue has accepted or refused the frame, so queue order matches message id
// order for all members. Channels never share a lock.
type FanoutService struct {
	registry       *Registry
	store          core.Store
	identity       IdentityResolver
	persistTimeout time.Duration

	locksMu sync.Mutex
	locks   map[domain.ChannelID]*channelLock
}

func NewFanoutService(reg *Registry, store core.Store, identity IdentityResolver, persistTimeout time.Duration) *FanoutService {
	if persistTimeout <= 0 {
		persistTimeout = 5 * time.Second
	}
	return &FanoutService{
		registry:       reg,
		store:          store,
		identity:       identity,
		persistTimeout: persistTimeout,
		locks:          make(map[domain.ChannelID]*channelLock),
	}
}

func (f *FanoutService) lockChannel(id domain.ChannelID) func() {
	f.locksMu.Lock()
	l := f.locks[id]
	if l == nil {
		l = &channelLock{}
		f.locks[id] = l
	}
	l.refs++
	f.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		f.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(f.locks, id)
		}
		f.locksMu.Unlock()
	}
}

// Send validates, persists and broadcasts one message from sender. Nothing
// is broadcast unless persistence succeeded.
func (f *FanoutService) Send(ctx context.Context, sender core.MemberSession, channelID domain.ChannelID, content string) (*domain.Message, core.PublishResult, error) {
	ch, err := lookupChannel(ctx, f.store, channelID, f.persistTimeout)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues(string(apperrors.TypeOf(err))).Inc()
		return nil, core.PublishResult{}, err
	}

	if !f.registry.IsMember(sender.ID(), domain.ServerTopic(ch.ServerID)) {
		metrics.MessagesTotal.WithLabelValues(string(apperrors.TypeAuthorization)).Inc()
		return nil, core.PublishResult{}, apperrors.AuthorizationError("not a member of this server")
	}

	content = strings.TrimSpace(content)
	switch {
	case content == "":
		metrics.MessagesTotal.WithLabelValues(string(apperrors.TypeValidation)).Inc()
		return nil, core.PublishResult{}, apperrors.ValidationError("message content is empty")
	case !ch.AcceptsChat():
		metrics.MessagesTotal.WithLabelValues(string(apperrors.TypeValidation)).Inc()
		return nil, core.PublishResult{}, apperrors.ValidationError("channel does not accept text messages")
	}

	author := f.display(ctx, sender.UserID())

	unlock := f.lockChannel(ch.ID)
	defer unlock()

	pctx, cancel := context.WithTimeout(ctx, f.persistTimeout)
	msg, err := f.store.CreateMessage(pctx, domain.MessageDraft{
		ChannelID: ch.ID,
		AuthorID:  sender.UserID(),
		Content:   content,
	})
	cancel()
	if err != nil {
		log.Error().Err(err).Str("module", "app.fanout").Str("conn", string(sender.ID())).
			Str("channel", ch.ID.String()).Msg("failed to persist message")
		metrics.MessagesTotal.WithLabelValues(string(apperrors.TypePersistence)).Inc()
		return nil, core.PublishResult{}, apperrors.PersistenceError("failed to save message", err)
	}
	metrics.MessagesTotal.WithLabelValues("persisted").Inc()

	frame, err := core.Encode(core.NewMessageEvent{Type: core.EventNewMessage, Message: *msg, User: author})
	if err != nil {
		return msg, core.PublishResult{}, apperrors.InternalError("failed to encode message", err)
	}

	res := core.Publish(f.registry.Members(domain.ChannelTopic(ch.ID)), "", frame)
	metrics.FanoutDeliveries.WithLabelValues("delivered").Add(float64(res.SendTo))
	metrics.FanoutDeliveries.WithLabelValues("dropped").Add(float64(len(res.Dropped)))
	log.Debug().Str("module", "app.fanout").Str("channel", ch.ID.String()).
		Int64("message", int64(msg.ID)).Int("sent", res.SendTo).Int("dropped", len(res.Dropped)).Msg("message fanned out")
	return msg, res, nil
}

func (f *FanoutService) display(ctx context.Context, id domain.UserID) *domain.User {
	ctx, cancel := context.WithTimeout(ctx, f.persistTimeout)
	defer cancel()
	return f.identity.Display(ctx, id)
}

// lookupChannel resolves a channel under the persistence timeout and maps
// store failures onto the gateway's error kinds.
func lookupChannel(ctx context.Context, store core.ChannelStore, id domain.ChannelID, timeout time.Duration) (*domain.Channel, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ch, err := store.GetChannel(ctx, id)
	switch {
	case errors.Is(err, domain.ErrChannelNotFound):
		return nil, apperrors.NotFoundError("channel not found")
	case err != nil:
		return nil, apperrors.PersistenceError("failed to load channel", err)
	}
	return ch, nil
}
