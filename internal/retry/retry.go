// Package retry holds the single retry policy shared by every data-access
// call: a capped number of attempts with exponential backoff, retrying only
// errors the predicate accepts.
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/dukerupert/giftpool/internal/apperr"
	"github.com/dukerupert/giftpool/internal/metrics"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 100 * time.Millisecond
	maxDelay           = 2 * time.Second
)

// Policy describes how an operation is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Retryable   func(error) bool
}

// Default returns the policy used across services: 3 attempts, 100ms base
// delay, retrying transient errors.
func Default() *Policy {
	return New(DefaultMaxAttempts, DefaultBaseDelay)
}

func New(maxAttempts int, baseDelay time.Duration) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Retryable:   apperr.IsTransient,
	}
}

func (p *Policy) backoff() goretry.Backoff {
	b := goretry.NewExponential(p.BaseDelay)
	b = goretry.WithCappedDuration(maxDelay, b)
	return goretry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted or ctx is done. op labels the retry metric.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if p == nil {
		return fn(ctx)
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = apperr.IsTransient
	}

	attempt := 0
	return goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.IncrementRetry(op)
		}
		err := fn(ctx)
		if err != nil && retryable(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p *Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
