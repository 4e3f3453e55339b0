package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:          3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDo(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		result, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		if result != "ok" || calls != 3 {
			t.Errorf("result=%q calls=%d", result, calls)
		}
	})

	t.Run("exhaustion returns last error unmodified", func(t *testing.T) {
		last := errors.New("still failing")
		calls := 0
		_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
			calls++
			return 0, last
		})
		if !errors.Is(err, last) {
			t.Errorf("err = %v, want last error", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("non-retryable fails immediately", func(t *testing.T) {
		fatal := errors.New("fatal")
		policy := fastPolicy()
		policy.Retryable = func(err error) bool { return !errors.Is(err, fatal) }

		calls := 0
		_, err := Do(context.Background(), policy, func(ctx context.Context) (int, error) {
			calls++
			return 0, fatal
		})
		if !errors.Is(err, fatal) || calls != 1 {
			t.Errorf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("cancellation is never retried", func(t *testing.T) {
		calls := 0
		_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
			calls++
			return 0, context.Canceled
		})
		if !errors.Is(err, context.Canceled) || calls != 1 {
			t.Errorf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("cancelled context stops before first call", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		_, err := Do(ctx, fastPolicy(), func(ctx context.Context) (int, error) {
			calls++
			return 0, nil
		})
		if !errors.Is(err, context.Canceled) || calls != 0 {
			t.Errorf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("zero attempts behaves as one", func(t *testing.T) {
		calls := 0
		_, err := Do(context.Background(), RetryPolicy{}, func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("boom")
		})
		if err == nil || calls != 1 {
			t.Errorf("err=%v calls=%d", err, calls)
		}
	})
}

func TestDelayFor(t *testing.T) {
	policy := RetryPolicy{
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          500 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 500 * time.Millisecond},
		{10, 500 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := delayFor(policy, tc.attempt); got != tc.want {
			t.Errorf("delayFor(attempt=%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
