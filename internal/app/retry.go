package app

import (
	"context"
	"time"

	"klineTrader/internal/ports"

	"github.com/jpillora/backoff"
)

// RetryPolicy bounds the retries of transient exchange failures.
type RetryPolicy struct {
	MaxAttempts int // Total attempts including the first; values below 1 mean 1
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the config defaults.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, MinDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}

type sleepFunc func(ctx context.Context, d time.Duration) error

// retrier re-runs calls that fail with a transient error.
// Order placement never goes through it.
type retrier struct {
	policy RetryPolicy
	logger ports.Logger
	sleep  sleepFunc
}

func (r retrier) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := &backoff.Backoff{
		Min:    r.policy.MinDelay,
		Max:    r.policy.MaxDelay,
		Factor: 2,
		Jitter: true,
	}
	maxAttempts := r.policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || !ports.IsTransient(err) || attempt >= maxAttempts {
			return err
		}
		delay := b.Duration()
		r.logger.Warn(ctx, op+": transient failure, retrying", map[string]interface{}{
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// retryValue is do for calls that return a value.
func retryValue[T any](ctx context.Context, r retrier, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
