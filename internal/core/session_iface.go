package core

import "github.com/dkeye/roomgate/internal/domain"

// ConnID is the opaque identifier of one admitted connection.
type ConnID string

// MemberSession binds an authenticated user to its transport endpoint.
// This is what the registry stores and fans out to.
type MemberSession interface {
	ID() ConnID
	UserID() domain.UserID
	Signal() SignalConnection
}
