package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	t.Parallel()

	single := NewValidationError("severity", "must be between 1 and 5")
	assert.EqualError(t, single, "validation: severity: must be between 1 and 5")
	assert.ErrorIs(t, fmt.Errorf("submit: %w", single), ErrValidation)

	multi := NewValidationErrors([]FieldError{
		{Field: "location", Message: "coordinates out of range"},
		{Field: "signal_type", Message: "unknown"},
	})
	assert.EqualError(t, multi, "validation: location: coordinates out of range; signal_type: unknown")
	assert.Len(t, multi.Errors, 2)
}

func TestConflictError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("cast vote: %w", NewConflictError(ConflictAlreadyVoted, "vote exists"))

	assert.ErrorIs(t, err, ErrConflict)
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ConflictAlreadyVoted, ce.Code)
}

func TestAbuseRejection(t *testing.T) {
	t.Parallel()

	err := error(&AbuseRejection{Reason: "too many submissions", RetryAfter: 41700 * time.Millisecond})

	assert.ErrorIs(t, err, ErrRateLimited)
	assert.EqualError(t, err, "rejected: too many submissions (retry after 42s)")
}

func TestSentinels_AreDistinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{ErrNotFound, ErrAlreadyExists, ErrValidation, ErrUnauthorized, ErrConflict, ErrRateLimited}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.NotErrorIs(t, a, b)
			}
		}
	}
}
