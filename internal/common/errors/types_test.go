package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorString(t *testing.T) {
	err := StoreUnavailableError("fetch failed", errors.New("connection refused")).
		WithCode("DB001").
		WithContext("table", "routing_rules")

	msg := err.Error()
	assert.Contains(t, msg, "store_unavailable")
	assert.Contains(t, msg, "fetch failed")
	assert.Contains(t, msg, "code=DB001")
	assert.Contains(t, msg, "cause=connection refused")
	assert.Contains(t, msg, "table=routing_rules")
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := InternalError("wrapped", cause)

	assert.True(t, errors.Is(err, cause))
}

func TestIsType(t *testing.T) {
	assert.True(t, IsType(ValidationError("bad"), ErrTypeValidation))
	assert.False(t, IsType(ValidationError("bad"), ErrTypeNotFound))
	assert.False(t, IsType(errors.New("plain"), ErrTypeValidation))
	assert.False(t, IsType(nil, ErrTypeValidation))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrTypeNotFound, GetType(NotFoundError("rule")))
	assert.Equal(t, ErrTypeTimeout, GetType(TimeoutError("delivery")))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
	assert.Equal(t, ErrorType(""), GetType(nil))
}
