package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/domain"
	"github.com/dkeye/roomgate/internal/store/memory"
	"github.com/stretchr/testify/require"
)

// fakeConn records frames in order. limit > 0 bounds the queue.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	limit  int
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
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

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type staticIdentity struct{}

func (staticIdentity) Display(_ context.Context, id domain.UserID) *domain.User {
	return &domain.User{ID: id, Username: "user" + id.String()}
}

func register(t *testing.T, reg *Registry, id string, uid domain.UserID) (core.MemberSession, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	sess := core.NewMemberSession(core.ConnID(id), uid, conn)
	require.NoError(t, reg.Register(sess))
	return sess, conn
}

func join(t *testing.T, reg *Registry, id core.ConnID, topics ...domain.Topic) {
	t.Helper()
	for _, tp := range topics {
		_, err := reg.Join(id, tp)
		require.NoError(t, err)
	}
}

// hangingUsers blocks every user lookup until the caller's context ends.
type hangingUsers struct {
	*memory.Store
}

func (hangingUsers) GetUser(ctx context.Context, _ domain.UserID) (*domain.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// gatedStore holds inserts into one channel until release is closed.
type gatedStore struct {
	*memory.Store
	channel domain.ChannelID
	entered chan struct{}
	release chan struct{}
}

func (s gatedStore) CreateMessage(ctx context.Context, draft domain.MessageDraft) (*domain.Message, error) {
	if draft.ChannelID == s.channel {
		s.entered <- struct{}{}
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.Store.CreateMessage(ctx, draft)
}
