package helpers

import (
	"context"
	"time"

	"ir-stock-service/src/logger"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy configures Retry. Zero fields take the defaults.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       SleepFunc
	Logger      *logger.Logger
}

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// -----------------------------------------------------------------------------

func DefaultRetryPolicy(log *logger.Logger) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Sleep:       SleepContext,
		Logger:      log,
	}
}

// -----------------------------------------------------------------------------

// SleepContext is the production SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// -----------------------------------------------------------------------------

// Retry runs fn up to MaxAttempts times. The wait before attempt n+1 is
// BaseDelay * 2^(n-1). The last error is returned unchanged once attempts run out.
// Configuration errors fail immediately.
func Retry[T any](ctx context.Context, policy RetryPolicy, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if policy.BaseDelay < 0 {
		policy.BaseDelay = 0
	}
	if policy.Sleep == nil {
		policy.Sleep = SleepContext
	}

	var zero T
	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}

		lastErr = err
		if IsConfigurationError(err) || attempt == policy.MaxAttempts-1 {
			break
		}

		delay := policy.BaseDelay * (1 << attempt)
		if policy.Logger != nil {
			policy.Logger.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, policy.MaxAttempts, operation, err, delay)
		}
		if serr := policy.Sleep(ctx, delay); serr != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// -----------------------------------------------------------------------------

// RetryWithBackoff is Retry for operations without a result value.
func RetryWithBackoff(ctx context.Context, policy RetryPolicy, operation string, fn func(ctx context.Context) error) error {
	_, err := Retry(ctx, policy, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
