package nlp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitError(t *testing.T) {
	assert.Equal(t, "rate limit exceeded. Please try again later", NewRateLimitError().Error())
	assert.Equal(t, "custom", NewRateLimitError("custom").Error())

	wrapped := fmt.Errorf("call failed: %w", NewRateLimitError("x"))
	assert.True(t, errors.Is(wrapped, &RateLimitError{}))
	assert.False(t, errors.Is(wrapped, &RefusalError{}))
}

func TestRefusalAndEmptyErrors(t *testing.T) {
	assert.Equal(t, "no", NewRefusalError("no").Error())
	assert.True(t, errors.Is(fmt.Errorf("x: %w", NewEmptyResponseError("empty")), &EmptyResponseError{}))
}

func TestCommonErrors(t *testing.T) {
	assert.Contains(t, ErrRateLimit.Error(), "rate limit")
	assert.Contains(t, ErrRefusal.Error(), "refused")
	assert.Contains(t, ErrEmptyResponse.Error(), "empty")
	assert.Contains(t, ErrInvalidModel.Error(), "invalid model")
}
