package core

import (
	"context"

	"github.com/dkeye/roomgate/internal/domain"
)

// ChannelStore resolves channels. Missing channels yield domain.ErrChannelNotFound.
type ChannelStore interface {
	GetChannel(ctx context.Context, id domain.ChannelID) (*domain.Channel, error)
}

// MembershipStore answers persisted server-membership questions. It is
// distinct from topic membership, which lives only in the registry.
type MembershipStore interface {
	IsServerMember(ctx context.Context, serverID domain.ServerID, userID domain.UserID) (bool, error)
}

// MessageStore persists chat messages. The store assigns ID and CreatedAt;
// IDs increase monotonically within a channel and are never reused.
type MessageStore interface {
	CreateMessage(ctx context.Context, draft domain.MessageDraft) (*domain.Message, error)
}

// UserStore resolves display identities. Missing users yield domain.ErrUserNotFound.
type UserStore interface {
	GetUser(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// Store is the persistence collaborator shared with the REST layer.
type Store interface {
	ChannelStore
	MembershipStore
	MessageStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}
