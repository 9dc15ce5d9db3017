// Package errors provides the gateway's error taxonomy. Every client-action
// failure is reported to the acting connection as an "error" event carrying
// the Type below; only authentication failures terminate a connect attempt.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType is the category of a gateway error, sent to clients as "kind".
type ErrorType string

const (
	// TypeAuthentication rejects a connect attempt (never an open connection).
	TypeAuthentication ErrorType = "authentication"
	// TypeAuthorization rejects a single action; the connection stays open.
	TypeAuthorization ErrorType = "authorization"
	// TypeValidation indicates malformed or disallowed input.
	TypeValidation ErrorType = "validation"
	// TypeNotFound indicates a referenced topic or channel does not exist.
	TypeNotFound ErrorType = "not_found"
	// TypePersistence indicates the external store is unavailable or failed.
	TypePersistence ErrorType = "persistence"
	// TypeInternal covers anything that did not map to a known category.
	TypeInternal ErrorType = "internal"
)

// ErrRoutingMiss is returned by the signaling relay when the target
// connection is gone. Callers drop it silently.
var ErrRoutingMiss = errors.New("signaling target not connected")

// Error is a structured gateway error.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error of the same Type, so errors.Is(err, &Error{Type: TypeValidation})
// works without comparing messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Type == e.Type
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause}
}

func AuthenticationError(message string, cause error) *Error {
	return newError(TypeAuthentication, message, cause)
}

func AuthorizationError(message string) *Error {
	return newError(TypeAuthorization, message, nil)
}

func ValidationError(message string) *Error {
	return newError(TypeValidation, message, nil)
}

func NotFoundError(message string) *Error {
	return newError(TypeNotFound, message, nil)
}

func PersistenceError(message string, cause error) *Error {
	return newError(TypePersistence, message, cause)
}

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

// AsError converts any error into a structured Error. Unknown errors become
// internal errors so their details never leak to clients.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return InternalError("internal error", err)
}

// TypeOf returns the category of err, or "" for nil.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	return AsError(err).Type
}
