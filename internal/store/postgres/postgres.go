// Package postgres implements the persistence collaborator on the account
// service's PostgreSQL database.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/roomgate/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type Store struct {
	pool *pgxpool.Pool
}

// Connect parses databaseURL, opens a pool and pings it.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Str("module", "store.postgres").Int32("max_conns", poolCfg.MaxConns).Msg("database connected")
	return &Store{pool: pool}, nil
}

func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) GetChannel(ctx context.Context, id domain.ChannelID) (*domain.Channel, error) {
	var c domain.Channel
	var typ string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, type, server_id FROM channels WHERE id = $1`, int64(id),
	).Scan(&c.ID, &c.Name, &typ, &c.ServerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel %d: %w", id, err)
	}
	c.Type = domain.ChannelType(typ)
	return &c, nil
}

func (s *Store) IsServerMember(ctx context.Context, serverID domain.ServerID, userID domain.UserID) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM server_members WHERE server_id = $1 AND user_id = $2)`,
		int64(serverID), int64(userID),
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return ok, nil
}

func (s *Store) CreateMessage(ctx context.Context, draft domain.MessageDraft) (*domain.Message, error) {
	m := domain.Message{
		ChannelID: draft.ChannelID,
		AuthorID:  draft.AuthorID,
		Content:   draft.Content,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (content, channel_id, user_id, "createdAt", "updatedAt")
		 VALUES ($1, $2, $3, now(), now())
		 RETURNING id, "createdAt"`,
		draft.Content, int64(draft.ChannelID), int64(draft.AuthorID),
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, COALESCE(avatar, '') FROM users WHERE id = $1`, int64(id),
	).Scan(&u.ID, &u.Username, &u.Avatar)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &u, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
