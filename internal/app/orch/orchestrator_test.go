package orch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/roomgate/internal/app"
	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/domain"
	"github.com/dkeye/roomgate/internal/identity"
	apperrors "github.com/dkeye/roomgate/internal/platform/errors"
	"github.com/dkeye/roomgate/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recConn struct {
	mu     sync.Mutex
	frames []core.Frame
	limit  int
	closed bool
}

func (c *recConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.limit > 0 && len(c.frames) >= c.limit {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *recConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *recConn) types(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, f := range c.frames {
		var ev struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(f, &ev))
		out = append(out, ev.Type)
	}
	return out
}

func (c *recConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	st := memory.New(nil)
	for id, name := range map[domain.UserID]string{1: "alice", 2: "bob", 3: "carol"} {
		st.AddUser(domain.User{ID: id, Username: name})
		st.AddServerMember(1, id)
	}
	st.AddChannel(domain.Channel{ID: 10, Name: "general", Type: domain.ChannelText, ServerID: 1})
	st.AddChannel(domain.Channel{ID: 20, Name: "lounge", Type: domain.ChannelVoice, ServerID: 1})
	resolver := identity.NewResolver(st, identity.NewMemoryCache(time.Minute, nil))
	return New(app.NewRegistry(), st, resolver, app.SimplePolicy{}, time.Second)
}

func connect(t *testing.T, o *Orchestrator, id string, uid domain.UserID) *recConn {
	t.Helper()
	conn := &recConn{}
	require.NoError(t, o.Connect(core.NewMemberSession(core.ConnID(id), uid, conn)))
	return conn
}

func TestOrchestrator_JoinChecks(t *testing.T) {
	o := newTestOrchestrator(t)
	connect(t, o, "A", 1)
	connect(t, o, "X", 99)
	ctx := context.Background()

	require.NoError(t, o.JoinTopic(ctx, "A", domain.ServerTopic(1)))
	err := o.JoinTopic(ctx, "X", domain.ServerTopic(1))
	assert.Equal(t, apperrors.TypeAuthorization, apperrors.TypeOf(err))

	require.NoError(t, o.JoinTopic(ctx, "A", domain.ChannelTopic(10)))
	err = o.JoinTopic(ctx, "A", domain.ChannelTopic(11))
	assert.Equal(t, apperrors.TypeNotFound, apperrors.TypeOf(err))

	err = o.JoinTopic(ctx, "A", domain.VoiceTopic(10))
	assert.Equal(t, apperrors.TypeValidation, apperrors.TypeOf(err))
	require.NoError(t, o.JoinTopic(ctx, "A", domain.VoiceTopic(20)))

	assert.Equal(t, []domain.Topic{
		domain.ChannelTopic(10), domain.ServerTopic(1), domain.VoiceTopic(20),
	}, o.Topics("A"))
	assert.Empty(t, o.Topics("X"))
}

func TestOrchestrator_SendMessage(t *testing.T) {
	o := newTestOrchestrator(t)
	a := connect(t, o, "A", 1)
	b := connect(t, o, "B", 2)
	ctx := context.Background()
	for _, id := range []core.ConnID{"A", "B"} {
		require.NoError(t, o.JoinTopic(ctx, id, domain.ServerTopic(1)))
		require.NoError(t, o.JoinTopic(ctx, id, domain.ChannelTopic(10)))
	}

	require.NoError(t, o.SendMessage(ctx, "A", 10, "hello"))
	assert.Equal(t, []string{core.EventNewMessage}, a.types(t))
	assert.Equal(t, []string{core.EventNewMessage}, b.types(t))

	err := o.SendMessage(ctx, "A", 20, "hello")
	assert.Equal(t, apperrors.TypeValidation, apperrors.TypeOf(err))
}

func TestOrchestrator_DisconnectFromVoice(t *testing.T) {
	o := newTestOrchestrator(t)
	connect(t, o, "A", 1)
	b := connect(t, o, "B", 2)
	c := connect(t, o, "C", 3)
	ctx := context.Background()
	require.NoError(t, o.JoinVoice(ctx, "A", 20))
	require.NoError(t, o.JoinTopic(ctx, "B", domain.VoiceTopic(20)))
	require.NoError(t, o.JoinTopic(ctx, "C", domain.ChannelTopic(10)))

	o.OnDisconnect("A")
	o.OnDisconnect("A")

	assert.Equal(t, []string{core.EventUserLeftVoice}, b.types(t))
	assert.Empty(t, c.types(t))
	assert.Equal(t, []core.MemberDTO{{ConnectionID: "B", UserID: 2}}, o.ListMembers(domain.VoiceTopic(20)))
}

func TestOrchestrator_SlowMemberIsKicked(t *testing.T) {
	o := newTestOrchestrator(t)
	connect(t, o, "A", 1)
	slow := connect(t, o, "B", 2)
	slow.limit = 1
	ctx := context.Background()
	for _, id := range []core.ConnID{"A", "B"} {
		require.NoError(t, o.JoinTopic(ctx, id, domain.ServerTopic(1)))
		require.NoError(t, o.JoinTopic(ctx, id, domain.ChannelTopic(10)))
	}

	require.NoError(t, o.SendMessage(ctx, "A", 10, "one"))
	require.NoError(t, o.SendMessage(ctx, "A", 10, "two"))

	assert.True(t, slow.isClosed())
	_, ok := o.Registry.Lookup("B")
	assert.False(t, ok)
	assert.Equal(t, []core.MemberDTO{{ConnectionID: "A", UserID: 1}}, o.ListMembers(domain.ChannelTopic(10)))
}

func TestOrchestrator_SignalRoutingMissIsSilent(t *testing.T) {
	o := newTestOrchestrator(t)
	a := connect(t, o, "A", 1)
	b := connect(t, o, "B", 2)

	env := app.Envelope{Kind: domain.SignalOffer, Sender: "A", Target: "B", Payload: json.RawMessage(`{"sdp":"x"}`)}
	require.NoError(t, o.Signal(env))
	assert.Equal(t, []string{core.EventSignalingOffer}, b.types(t))

	env.Target = "gone"
	assert.NoError(t, o.Signal(env))
	assert.Empty(t, a.types(t))
}

func TestOrchestrator_Shutdown(t *testing.T) {
	o := newTestOrchestrator(t)
	a := connect(t, o, "A", 1)
	b := connect(t, o, "B", 2)

	o.Shutdown()

	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	assert.Zero(t, o.Registry.Count())
}
