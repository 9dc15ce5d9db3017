package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/roomgate/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const userKeyPrefix = "roomgate:user:"

// RedisCache shares display identities across gateway instances.
type RedisCache struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

func NewRedisCache(rdb goredis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func userKey(id domain.UserID) string { return userKeyPrefix + id.String() }

func (c *RedisCache) Get(ctx context.Context, id domain.UserID) (*domain.User, bool) {
	raw, err := c.rdb.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			log.Warn().Err(err).Str("module", "identity.redis").Str("user", id.String()).Msg("cache get failed")
		}
		return nil, false
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		log.Warn().Err(err).Str("module", "identity.redis").Str("user", id.String()).Msg("cache entry corrupt")
		return nil, false
	}
	return &u, true
}

func (c *RedisCache) Set(ctx context.Context, u *domain.User) {
	raw, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, userKey(u.ID), raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("module", "identity.redis").Str("user", u.ID.String()).Msg("cache set failed")
	}
}

// NewRedisClient parses a redis URL (e.g. "redis://localhost:6379/0") and pings it.
func NewRedisClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
