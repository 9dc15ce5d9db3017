package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := PersistenceError("failed to persist message", errors.New("conn refused"))
	assert.Equal(t, "persistence: failed to persist message: conn refused", err.Error())

	err = ValidationError("content is empty")
	assert.Equal(t, "validation: content is empty", err.Error())
}

func TestError_UnwrapAndIs(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("send: %w", PersistenceError("store down", cause))

	assert.ErrorIs(t, wrapped, cause)
	assert.ErrorIs(t, wrapped, &Error{Type: TypePersistence})
	assert.NotErrorIs(t, wrapped, &Error{Type: TypeValidation})
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(nil))

	e := AsError(fmt.Errorf("wrap: %w", NotFoundError("channel not found")))
	assert.Equal(t, TypeNotFound, e.Type)
	assert.Equal(t, "channel not found", e.Message)

	e = AsError(errors.New("raw"))
	assert.Equal(t, TypeInternal, e.Type)
	assert.Equal(t, "internal error", e.Message)
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorType(""), TypeOf(nil))
	assert.Equal(t, TypeAuthorization, TypeOf(AuthorizationError("not a member")))
	assert.Equal(t, TypeInternal, TypeOf(errors.New("x")))
}
