package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("bad input", "name")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("gone")))
	assert.Equal(t, KindForbidden, KindOf(Forbidden("no")))
	assert.Equal(t, KindUnavailable, KindOf(Unavailable("down", nil)))
	assert.Equal(t, KindInternal, KindOf(Internal("boom", nil)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("message not found"))
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestValidationFields(t *testing.T) {
	err := Validation("invalid input", "studentId", "content")

	assert.Equal(t, []string{"studentId", "content"}, FieldsOf(err))
	assert.Contains(t, err.Error(), "studentId")
	assert.Contains(t, err.Error(), "content")
	assert.Nil(t, FieldsOf(errors.New("plain")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("store down", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(fmt.Errorf("query: %w", context.Canceled)))
	assert.False(t, IsTimeout(errors.New("other")))
}
