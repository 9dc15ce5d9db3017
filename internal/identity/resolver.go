// Package identity resolves user ids into display identities for outbound
// events, with a cache in front of the persistence store.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/roomgate/internal/core"
	"github.com/dkeye/roomgate/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Cache holds display identities. Implementations must be safe for
// concurrent use; a miss or backend failure is reported as ok == false.
type Cache interface {
	Get(ctx context.Context, id domain.UserID) (*domain.User, bool)
	Set(ctx context.Context, u *domain.User)
}

type Resolver struct {
	users core.UserStore
	cache Cache
	group singleflight.Group
}

func NewResolver(users core.UserStore, cache Cache) *Resolver {
	return &Resolver{users: users, cache: cache}
}

// Resolve returns the display identity of id, reading through the cache.
func (r *Resolver) Resolve(ctx context.Context, id domain.UserID) (*domain.User, error) {
	if r.cache != nil {
		if u, ok := r.cache.Get(ctx, id); ok {
			return u, nil
		}
	}

	v, err, _ := r.group.Do(id.String(), func() (any, error) {
		u, err := r.users.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			r.cache.Set(ctx, u)
		}
		return u, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to resolve user %d: %w", id, err)
	}
	return v.(*domain.User), nil
}

// Display never fails: when the user cannot be resolved it falls back to a
// bare identity so an already-persisted message is still delivered.
func (r *Resolver) Display(ctx context.Context, id domain.UserID) *domain.User {
	u, err := r.Resolve(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("module", "identity").Str("user", id.String()).Msg("display identity fallback")
		return &domain.User{ID: id, Username: (&domain.User{ID: id}).DisplayName()}
	}
	return u
}
