package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/domain"
	"github.com/dkeye/roomgate/internal/identity"
	apperrors "github.com/dkeye/roomgate/internal/platform/errors"
	"github.com/dkeye/roomgate/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct {
	*memory.Store
}

func (brokenStore) CreateMessage(context.Context, domain.MessageDraft) (*domain.Message, error) {
	return nil, errors.New("connection reset")
}

func newFanoutFixture(t *testing.T) (*Registry, *memory.Store, *FanoutService) {
	t.Helper()
	st := memory.New(nil)
	st.AddChannel(domain.Channel{ID: 7, Name: "general", Type: domain.ChannelText, ServerID: 3})
	st.AddChannel(domain.Channel{ID: 8, Name: "lounge", Type: domain.ChannelVoice, ServerID: 3})
	reg := NewRegistry()
	return reg, st, NewFanoutService(reg, st, staticIdentity{}, time.Second)
}

func TestFanout_TwoSendersObserveSameOrder(t *testing.T) {
	reg, st, fan := newFanoutFixture(t)
	st.SetLastMessageID(100)
	a, connA := register(t, reg, "A", 1)
	b, connB := register(t, reg, "B", 2)
	join(t, reg, "A", domain.ServerTopic(3), domain.ChannelTopic(7))
	join(t, reg, "B", domain.ServerTopic(3), domain.ChannelTopic(7))
	ctx := context.Background()

	m1, _, err := fan.Send(ctx, a, 7, "hi")
	require.NoError(t, err)
	m2, _, err := fan.Send(ctx, b, 7, "yo")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageID(101), m1.ID)
	assert.Equal(t, domain.MessageID(102), m2.ID)

	for _, conn := range []*fakeConn{connA, connB} {
		evs := conn.events(t)
		require.Len(t, evs, 2)
		assert.Equal(t, core.EventNewMessage, evs[0]["type"])
		assert.EqualValues(t, 101, evs[0]["id"])
		assert.Equal(t, "hi", evs[0]["content"])
		assert.EqualValues(t, 1, evs[0]["userId"])
		assert.EqualValues(t, 102, evs[1]["id"])
		assert.Equal(t, "user2", evs[1]["user"].(map[string]any)["username"])
	}
}

func TestFanout_ConcurrentSendersShareOneOrder(t *testing.T) {
	reg, st, fan := newFanoutFixture(t)
	const members, perSender = 4, 50
	conns := make([]*fakeConn, members)
	sessions := make([]core.MemberSession, members)
	for i := range members {
		sessions[i], conns[i] = register(t, reg, fmt.Sprintf("m%d", i), domain.UserID(i+1))
		join(t, reg, sessions[i].ID(), domain.ServerTopic(3), domain.ChannelTopic(7))
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range perSender {
				_, _, err := fan.Send(context.Background(), s, 7, fmt.Sprintf("%s-%d", s.ID(), j))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, st.Messages(7), members*perSender)
	var reference []float64
	for i, conn := range conns {
		var ids []float64
		for _, ev := range conn.events(t) {
			ids = append(ids, ev["id"].(float64))
		}
		require.Len(t, ids, members*perSender)
		for k := 1; k < len(ids); k++ {
			require.Less(t, ids[k-1], ids[k], "member %d saw ids out of order", i)
		}
		if reference == nil {
			reference = ids
		}
		assert.Equal(t, reference, ids)
	}
}

func TestFanout_Rejections(t *testing.T) {
	reg, st, fan := newFanoutFixture(t)
	member, _ := register(t, reg, "member", 1)
	outsider, _ := register(t, reg, "outsider", 2)
	join(t, reg, "member", domain.ServerTopic(3), domain.ChannelTopic(7), domain.ChannelTopic(8))
	_, listener := register(t, reg, "listener", 3)
	join(t, reg, "listener", domain.ServerTopic(3), domain.ChannelTopic(7), domain.ChannelTopic(8))

	tests := []struct {
		name    string
		sender  core.MemberSession
		channel domain.ChannelID
		content string
		kind    apperrors.ErrorType
	}{
		{"not a server member", outsider, 7, "hello", apperrors.TypeAuthorization},
		{"voice channel", member, 8, "hello", apperrors.TypeValidation},
		{"empty content", member, 7, "   ", apperrors.TypeValidation},
		{"missing channel", member, 99, "hello", apperrors.TypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := fan.Send(context.Background(), tt.sender, tt.channel, tt.content)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.TypeOf(err))
		})
	}
	assert.Empty(t, st.Messages(7))
	assert.Empty(t, st.Messages(8))
	assert.Zero(t, listener.count())
}

func TestFanout_PersistenceFailureBroadcastsNothing(t *testing.T) {
	st := memory.New(nil)
	st.AddChannel(domain.Channel{ID: 7, Name: "general", Type: domain.ChannelText, ServerID: 3})
	reg := NewRegistry()
	fan := NewFanoutService(reg, brokenStore{st}, staticIdentity{}, time.Second)
	sender, senderConn := register(t, reg, "A", 1)
	_, other := register(t, reg, "B", 2)
	join(t, reg, "A", domain.ServerTopic(3), domain.ChannelTopic(7))
	join(t, reg, "B", domain.ServerTopic(3), domain.ChannelTopic(7))

	_, _, err := fan.Send(context.Background(), sender, 7, "hi")
	require.Error(t, err)
	assert.Equal(t, apperrors.TypePersistence, apperrors.TypeOf(err))
	assert.Zero(t, senderConn.count())
	assert.Zero(t, other.count())
}

func TestFanout_SlowRecipientDoesNotBlockOthers(t *testing.T) {
	reg, _, fan := newFanoutFixture(t)
	sender, senderConn := register(t, reg, "A", 1)
	slow, slowConn := register(t, reg, "B", 2)
	_, fastConn := register(t, reg, "C", 3)
	slowConn.limit = 1
	for _, id := range []core.ConnID{"A", "B", "C"} {
		join(t, reg, id, domain.ServerTopic(3), domain.ChannelTopic(7))
	}

	_, _, err := fan.Send(context.Background(), sender, 7, "one")
	require.NoError(t, err)
	_, res, err := fan.Send(context.Background(), sender, 7, "two")
	require.NoError(t, err)

	assert.Equal(t, 2, res.SendTo)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, slow.ID(), res.Dropped[0].ID())
	assert.Equal(t, 2, senderConn.count())
	assert.Equal(t, 2, fastConn.count())
	assert.Equal(t, 1, slowConn.count())
}

func TestFanout_ChannelMembershipScopesDelivery(t *testing.T) {
	reg, _, fan := newFanoutFixture(t)
	sender, _ := register(t, reg, "A", 1)
	_, serverOnly := register(t, reg, "B", 2)
	join(t, reg, "A", domain.ServerTopic(3))
	join(t, reg, "B", domain.ServerTopic(3))

	_, res, err := fan.Send(context.Background(), sender, 7, "anyone?")
	require.NoError(t, err)
	assert.Zero(t, res.SendTo)
	assert.Zero(t, serverOnly.count())
}

func TestFanout_HangingUserLookupFallsBack(t *testing.T) {
	st := memory.New(nil)
	st.AddChannel(domain.Channel{ID: 7, Name: "general", Type: domain.ChannelText, ServerID: 3})
	users := hangingUsers{st}
	reg := NewRegistry()
	fan := NewFanoutService(reg, users, identity.NewResolver(users, nil), 100*time.Millisecond)
	sender, senderConn := register(t, reg, "A", 1)
	_, other := register(t, reg, "B", 2)
	join(t, reg, "A", domain.ServerTopic(3), domain.ChannelTopic(7))
	join(t, reg, "B", domain.ServerTopic(3), domain.ChannelTopic(7))

	done := make(chan error, 1)
	go func() {
		_, _, err := fan.Send(context.Background(), sender, 7, "hi")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked on user lookup")
	}

	assert.Len(t, st.Messages(7), 1)
	assert.Equal(t, 1, senderConn.count())
	evs := other.events(t)
	require.Len(t, evs, 1)
	assert.Equal(t, "user-1", evs[0]["user"].(map[string]any)["username"])
}

func TestFanout_SlowChannelDoesNotBlockOthers(t *testing.T) {
	st := memory.New(nil)
	st.AddChannel(domain.Channel{ID: 7, Name: "general", Type: domain.ChannelText, ServerID: 3})
	st.AddChannel(domain.Channel{ID: 9, Name: "random", Type: domain.ChannelText, ServerID: 3})
	gated := gatedStore{Store: st, channel: 7, entered: make(chan struct{}, 1), release: make(chan struct{})}
	reg := NewRegistry()
	fan := NewFanoutService(reg, gated, staticIdentity{}, 5*time.Second)
	sender, _ := register(t, reg, "A", 1)
	join(t, reg, "A", domain.ServerTopic(3), domain.ChannelTopic(7), domain.ChannelTopic(9))

	slow := make(chan error, 1)
	go func() {
		_, _, err := fan.Send(context.Background(), sender, 7, "stuck")
		slow <- err
	}()
	<-gated.entered

	done := make(chan error, 1)
	go func() {
		_, _, err := fan.Send(context.Background(), sender, 9, "free")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("send to channel 9 waited on channel 7")
	}
	assert.Len(t, st.Messages(9), 1)

	close(gated.release)
	require.NoError(t, <-slow)
	assert.Len(t, st.Messages(7), 1)
	assert.Empty(t, fan.locks)
}
