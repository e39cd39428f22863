// Package retry provides retry with exponential backoff and jitter. The
// event store never retries a conflicting append on its own; OnConflict is
// the explicit wrapper a caller opts into for the reload-and-reapply cycle.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

type settings struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitterFactor float64
	retryIf      func(error) bool
	onRetry      func(attempt int, err error, delay time.Duration)
}

// Option adjusts a Retrier at construction time.
type Option func(*settings)

// WithMaxAttempts sets the attempt budget, including the first call.
func WithMaxAttempts(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.initialDelay = d
		}
	}
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.maxDelay = d
		}
	}
}

// WithMultiplier sets the per-attempt backoff growth factor.
func WithMultiplier(m float64) Option {
	return func(s *settings) {
		if m >= 1.0 {
			s.multiplier = m
		}
	}
}

// WithJitter sets the jitter factor, 0 (none) to 1 (full).
func WithJitter(j float64) Option {
	return func(s *settings) {
		if j >= 0 && j <= 1.0 {
			s.jitterFactor = j
		}
	}
}

// WithRetryIf sets the predicate deciding which errors are retried.
// Without one, nothing is retried.
func WithRetryIf(fn func(error) bool) Option {
	return func(s *settings) { s.retryIf = fn }
}

// WithOnRetry registers a callback invoked before each retry sleep.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(s *settings) { s.onRetry = fn }
}

// Retrier re-runs operations whose errors match its predicate.
type Retrier struct {
	settings settings
}

// New creates a Retrier. Defaults: 3 attempts, 50ms initial delay doubling
// up to 5s, 10% jitter.
func New(opts ...Option) *Retrier {
	s := settings{
		maxAttempts:  3,
		initialDelay: 50 * time.Millisecond,
		maxDelay:     5 * time.Second,
		multiplier:   2.0,
		jitterFactor: 0.1,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &Retrier{settings: s}
}

// Do runs the operation until it succeeds, exhausts the attempt budget, or
// returns an error the predicate rejects. The last error is returned.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}
		if r.settings.retryIf == nil || !r.settings.retryIf(lastErr) {
			return lastErr
		}
		if attempt >= r.settings.maxAttempts {
			return lastErr
		}

		delay := r.calculateDelay(attempt)
		if r.settings.onRetry != nil {
			r.settings.onRetry(attempt, lastErr, delay)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
	}
}

// calculateDelay doubles (or whatever the multiplier says) per attempt,
// caps at maxDelay, then spreads by the jitter factor.
func (r *Retrier) calculateDelay(attempt int) time.Duration {
	delay := float64(r.settings.initialDelay)
	for i := 1; i < attempt; i++ {
		delay *= r.settings.multiplier
		if delay >= float64(r.settings.maxDelay) {
			delay = float64(r.settings.maxDelay)
			break
		}
	}

	if r.settings.jitterFactor > 0 {
		jitter := delay * r.settings.jitterFactor
		delay += rand.Float64()*jitter - jitter/2
	}

	return time.Duration(delay)
}

// OnConflict runs a full read-modify-write cycle up to maxAttempts times,
// retrying only when isConflict reports a concurrency conflict. The
// operation must reload its aggregate on every attempt; retrying a stale
// in-memory aggregate would silently replay domain side effects.
func OnConflict(ctx context.Context, maxAttempts int, isConflict func(error) bool, operation func(ctx context.Context) error) error {
	return New(
		WithMaxAttempts(maxAttempts),
		WithRetryIf(isConflict),
	).Do(ctx, operation)
}

// Is adapts a sentinel into an errors.Is predicate for WithRetryIf.
func Is(target error) func(error) bool {
	return func(err error) bool {
		return errors.Is(err, target)
	}
}
