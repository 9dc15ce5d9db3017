package sqlite

import (
	"context"
	"fmt"
)

// Schema mirrors the subset of the account service tables the gateway reads
// and writes. It is applied by Migrate for local development and tests.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	avatar TEXT
);
CREATE TABLE IF NOT EXISTS channels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'text',
	server_id INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS server_members (
	server_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	PRIMARY KEY (server_id, user_id)
);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	channel_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	createdAt DATETIME NOT NULL,
	updatedAt DATETIME NOT NULL
);`

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
