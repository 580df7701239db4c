package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashvault/mining-server/internal/apperrors"
)

func TestRunWithRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := RunWithRetry(context.Background(), DefaultRetryPolicy, isWriteConflict, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunWithRetryRecoversFromConflict(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond}
	calls := 0
	err := RunWithRetry(context.Background(), policy, isWriteConflict, func() error {
		calls++
		if calls < 3 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunWithRetryExhaustsBudget(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond}
	calls := 0
	err := RunWithRetry(context.Background(), policy, isWriteConflict, func() error {
		calls++
		return &pq.Error{Code: "40P01"}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestRunWithRetryDoesNotRetryValidationErrors(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond}
	appErr := apperrors.InsufficientFunds("not enough")
	calls := 0
	err := RunWithRetry(context.Background(), policy, isWriteConflict, func() error {
		calls++
		return appErr
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, appErr, err)
}

func TestRunWithRetryBackoffGrows(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseBackoff: 20 * time.Millisecond}
	start := time.Now()
	_ = RunWithRetry(context.Background(), policy, isWriteConflict, func() error {
		return &pq.Error{Code: "40001"}
	})
	// Two waits: 1x and 2x the base backoff.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRunWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, BaseBackoff: time.Hour}
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := RunWithRetry(ctx, policy, isWriteConflict, func() error {
		calls++
		return &pq.Error{Code: "40001"}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsWriteConflict(t *testing.T) {
	assert.True(t, isWriteConflict(&pq.Error{Code: "40001"}))
	assert.True(t, isWriteConflict(&pq.Error{Code: "40P01"}))
	assert.False(t, isWriteConflict(&pq.Error{Code: "23505"}))
	assert.False(t, isWriteConflict(errors.New("plain error")))
	assert.False(t, isWriteConflict(apperrors.Validation("bad input")))
}
