package identity

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/roomgate/internal/domain"
	"github.com/jonboulle/clockwork"
)

type memoryEntry struct {
	user      domain.User
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache used when no redis is configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[domain.UserID]memoryEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

func NewMemoryCache(ttl time.Duration, clock clockwork.Clock) *MemoryCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryCache{
		entries: make(map[domain.UserID]memoryEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

func (c *MemoryCache) Get(_ context.Context, id domain.UserID) (*domain.User, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok || !c.clock.Now().Before(e.expiresAt) {
		return nil, false
	}
	u := e.user
	return &u, true
}

func (c *MemoryCache) Set(_ context.Context, u *domain.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[u.ID] = memoryEntry{user: *u, expiresAt: c.clock.Now().Add(c.ttl)}
}

// EvictExpired drops stale entries and returns how many were removed.
func (c *MemoryCache) EvictExpired() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

// StartEvictionTimer runs EvictExpired periodically until the returned stop
// function is called.
func (c *MemoryCache) StartEvictionTimer(interval time.Duration) func() {
	ticker := c.clock.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				c.EvictExpired()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
