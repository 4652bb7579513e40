package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("handler: %w", ValidationError("radius must be at least %d", 100))
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.False(t, KindOf(err).Retryable())

	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestUpstreamError(t *testing.T) {
	cause := errors.New("ResourceNotFoundException: table Users missing")
	err := UpstreamError("find by network", cause)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, err.Msg, "Users")
	assert.True(t, err.Kind.Retryable())

	timeout := UpstreamError("relationships", fmt.Errorf("query: %w", context.DeadlineExceeded))
	assert.Contains(t, timeout.Msg, "timed out")
}
