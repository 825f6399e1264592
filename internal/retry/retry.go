// Package retry provides exponential backoff with jitter for provider
// transport errors.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int
	// InitialDelay is the delay after the first failure.
	InitialDelay time.Duration
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
	// Factor is the multiplier for exponential backoff.
	Factor float64
	// Jitter randomizes each delay into [0.5, 1.5) of its nominal value.
	Jitter bool
}

// DefaultConfig returns the defaults used by the provider adapters.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Factor:       2.0,
		Jitter:       true,
	}
}

// PermanentError marks an error that should not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps an error to indicate it should not be retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent checks whether an error is marked permanent.
func IsPermanent(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent)
}

// Do executes op with retries. It returns the last error when attempts are
// exhausted, the wrapped error immediately for permanent failures, and the
// context error if cancelled while waiting.
func Do(ctx context.Context, cfg Config, op func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Factor <= 0 {
		cfg.Factor = 2.0
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			return lastErr
		}
		if attempt >= cfg.MaxAttempts {
			break
		}

		sleep := delay
		if cfg.Jitter {
			sleep = time.Duration(float64(delay) * (0.5 + rand.Float64())) // #nosec G404 -- jitter needs no crypto randomness
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		delay = time.Duration(float64(delay) * cfg.Factor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}

// DoWithValue executes an operation that returns a value with retries.
func DoWithValue[T any](ctx context.Context, cfg Config, op func() (T, error)) (T, error) {
	var value T
	err := Do(ctx, cfg, func() error {
		var opErr error
		value, opErr = op()
		return opErr
	})
	return value, err
}
