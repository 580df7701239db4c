package repository

import (
	"context"
	"time"

	"github.com/hashvault/mining-server/internal/apperrors"
	"github.com/hashvault/mining-server/internal/metrics"
)

// RetryPolicy bounds the conflict-retry loop of an atomic unit.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// DefaultRetryPolicy matches the product requirement of three attempts
// with increasing backoff.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseBackoff: 50 * time.Millisecond,
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = DefaultRetryPolicy.BaseBackoff
	}
	return p
}

// RunWithRetry executes fn until it succeeds, fails with an error that
// isRetryable rejects, or exhausts the attempt budget. The backoff grows
// linearly with the attempt number. A budget exhausted on retryable
// errors surfaces as a Conflict error; any other error is returned
// unchanged so validation failures are never retried.
func RunWithRetry(ctx context.Context, policy RetryPolicy, isRetryable func(error) bool, fn func() error) error {
	policy = policy.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}

		metrics.ConflictRetries.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * policy.BaseBackoff):
		}
	}

	return apperrors.Conflict(lastErr)
}
