// Package sqlite implements the persistence collaborator on an embedded
// SQLite database using the same tables as the account service.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/roomgate/internal/domain"
	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// Writes are serialized by sqlite anyway; one connection also keeps
	// :memory: databases shared.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// DB exposes the handle for migrations and fixtures.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) GetChannel(ctx context.Context, id domain.ChannelID) (*domain.Channel, error) {
	var c domain.Channel
	var typ string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, server_id FROM channels WHERE id = ?`, int64(id),
	).Scan(&c.ID, &c.Name, &typ, &c.ServerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel %d: %w", id, err)
	}
	c.Type = domain.ChannelType(typ)
	return &c, nil
}

func (s *Store) IsServerMember(ctx context.Context, serverID domain.ServerID, userID domain.UserID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM server_members WHERE server_id = ? AND user_id = ? LIMIT 1`,
		int64(serverID), int64(userID),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}

func (s *Store) CreateMessage(ctx context.Context, draft domain.MessageDraft) (*domain.Message, error) {
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (content, channel_id, user_id, createdAt, updatedAt) VALUES (?, ?, ?, ?, ?)`,
		draft.Content, int64(draft.ChannelID), int64(draft.AuthorID), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read message id: %w", err)
	}
	return &domain.Message{
		ID:        domain.MessageID(id),
		ChannelID: draft.ChannelID,
		AuthorID:  draft.AuthorID,
		Content:   draft.Content,
		CreatedAt: now,
	}, nil
}

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, COALESCE(avatar, '') FROM users WHERE id = ?`, int64(id),
	).Scan(&u.ID, &u.Username, &u.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &u, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }
