package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrMaxAttemptsExceeded is returned when an operation keeps failing
// past RetryConfig.MaxAttempts.
var ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")

// RetryConfig controls exponential backoff behavior
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultConfig returns a conservative retry configuration
func DefaultConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
	}
}

// WithExponentialBackoff runs operation until it succeeds, is not retryable,
// the context is cancelled, or MaxAttempts is reached. Delays grow by
// Multiplier each attempt, capped at MaxDelay, with up to 10% jitter.
func WithExponentialBackoff(
	ctx context.Context,
	config RetryConfig,
	operation func() error,
	isRetryable func(error) bool,
) error {
	var lastErr error
	delay := config.BaseDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		if isRetryable != nil && !isRetryable(lastErr) {
			return lastErr
		}

		if attempt == config.MaxAttempts {
			break
		}

		sleep := delay
		if sleep > 0 {
			sleep += time.Duration(rand.Int63n(int64(sleep)/10 + 1))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return errors.Join(ErrMaxAttemptsExceeded, lastErr)
}
