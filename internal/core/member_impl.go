package core

import "github.com/dkeye/roomgate/internal/domain"

// memberSession implements MemberSession. The user id is fixed at
// construction, after authentication, and never rebound.
type memberSession struct {
	id     ConnID
	userID domain.UserID
	conn   SignalConnection
}

func NewMemberSession(id ConnID, userID domain.UserID, conn SignalConnection) MemberSession {
	return &memberSession{id: id, userID: userID, conn: conn}
}

func (m *memberSession) ID() ConnID               { return m.id }
func (m *memberSession) UserID() domain.UserID    { return m.userID }
func (m *memberSession) Signal() SignalConnection { return m.conn }
