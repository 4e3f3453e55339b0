// Package resilience provides retry with exponential backoff for transient
// failures against external systems.
package resilience

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy configures Do. Attempts counts total calls, not retries.
type RetryPolicy struct {
	Attempts          int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// Retryable classifies errors. A nil predicate retries everything
	// except context cancellation.
	Retryable func(error) bool
}

// DefaultPolicy matches the pipeline's standard persistence settings.
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:          3,
		InitialDelay:      200 * time.Millisecond,
		MaxDelay:          2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Do invokes fn until it succeeds, a non-retryable error occurs, all
// attempts are exhausted, or ctx is done. The last error is returned
// unmodified so callers can classify it.
func Do[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(policy, err) || attempt == attempts {
			return zero, lastErr
		}

		if err := sleep(ctx, delayFor(policy, attempt)); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func retryable(policy RetryPolicy, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if policy.Retryable == nil {
		return true
	}
	return policy.Retryable(err)
}

// delayFor computes the backoff before the next attempt: the initial delay
// scaled by multiplier^(attempt-1), capped at MaxDelay.
func delayFor(policy RetryPolicy, attempt int) time.Duration {
	delay := policy.InitialDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	multiplier := policy.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if policy.MaxDelay > 0 && delay >= policy.MaxDelay {
			return policy.MaxDelay
		}
	}
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
