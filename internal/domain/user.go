// Package domain contains entities without transport or lifecycle logic.
package domain

import (
	"errors"
	"strconv"
)

var ErrUserNotFound = errors.New("user not found")

type UserID int64

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

// User is the display identity of an account. Accounts themselves are
// managed by the persistence layer; the gateway only reads them.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// DisplayName falls back to "user-<id>" when the username is empty. A nil
// user has no name.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return "user-" + u.ID.String()
}
