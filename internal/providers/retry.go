package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// RetryConfig controls retry behaviour for provider HTTP calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns the retry policy used by all providers.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    20 * time.Second,
	}
}

// retryableError wraps an error that is safe to retry (429, 5xx, transient network).
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks an error as retryable.
func Retryable(err error) error {
	return &retryableError{err: err}
}

// IsRetryable reports whether err was marked retryable.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// RetryDo runs fn with exponential backoff and jitter.
// Only errors marked via Retryable are retried; everything else fails fast.
func RetryDo[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == cfg.MaxAttempts {
			return zero, err
		}

		delay := cfg.BaseDelay << (attempt - 1)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		// Jitter spreads concurrent retries.
		delay += time.Duration(rand.Int63n(int64(delay) / 2))

		slog.Warn("provider call failed, retrying",
			"attempt", attempt, "max_attempts", cfg.MaxAttempts,
			"delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}
