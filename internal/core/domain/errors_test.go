package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_Messages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrNotFound, "not found"},
		{ErrInvalidInput, "invalid input"},
		{ErrUnsupportedType, "unsupported type"},
		{ErrLLMUnavailable, "LLM service unavailable"},
		{ErrResearchUnavailable, "research provider unavailable"},
		{ErrProviderFailure, "provider failure"},
		{ErrCostLimitExceeded, "cost limit exceeded"},
		{ErrRateLimited, "rate limited"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrors_Uniqueness(t *testing.T) {
	all := []error{
		ErrNotFound, ErrInvalidInput, ErrUnsupportedType, ErrLLMUnavailable,
		ErrResearchUnavailable, ErrProviderFailure, ErrCostLimitExceeded, ErrRateLimited,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}

func TestErrors_Wrapping(t *testing.T) {
	err := fmt.Errorf("research section %q: %w", "Intro", ErrCostLimitExceeded)

	assert.True(t, errors.Is(err, ErrCostLimitExceeded))
	assert.False(t, errors.Is(err, ErrProviderFailure))
	assert.Contains(t, err.Error(), "Intro")
}
