package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how a single provider call is retried.
// The zero value performs exactly one attempt.
type Policy struct {
	// MaxAttempts bounds the total number of attempts, including the first one. Zero or one means no retries.
	MaxAttempts         uint
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
	// Retryable reports whether err is worth another attempt. A nil Retryable retries every error.
	Retryable func(err error) bool
	// OnRetry is called after a failed attempt, before waiting for the next one.
	OnRetry func(err error, wait time.Duration)
}

// DefaultPolicy returns the policy used for object storage and catalog calls when nothing else is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:         5,
		InitialInterval:     time.Millisecond * 100,
		MaxInterval:         time.Second * 5,
		Multiplier:          2,
		RandomizationFactor: 0.2,
	}
}

// WithRetryable returns a copy of the policy using the given predicate.
func (p Policy) WithRetryable(retryable func(err error) bool) Policy {
	p.Retryable = retryable
	return p
}

// WithOnRetry returns a copy of the policy that calls fn before every retry.
func (p Policy) WithOnRetry(fn func(err error, wait time.Duration)) Policy {
	p.OnRetry = fn
	return p
}

// Do runs op until it succeeds, returns a non-retryable error, the attempts are exhausted or ctx is done.
// The returned error is the last error returned by op, or the context error.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is like Policy.Do but for operations that produce a value.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	return backoff.RetryNotifyWithData(func() (T, error) {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return v, backoff.Permanent(err)
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, p.backOff(ctx), p.notify)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	initial := p.InitialInterval
	if initial <= 0 {
		initial = backoff.DefaultInitialInterval
	}
	maxInterval := p.MaxInterval
	if maxInterval < initial {
		maxInterval = initial
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	var bk backoff.BackOff = backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initial),
		backoff.WithMaxInterval(maxInterval),
		backoff.WithMultiplier(multiplier),
		backoff.WithRandomizationFactor(p.RandomizationFactor),
		// attempts, not elapsed time, bound the retries
		backoff.WithMaxElapsedTime(0),
	)

	var retries uint64
	if p.MaxAttempts > 1 {
		retries = uint64(p.MaxAttempts - 1)
	}
	bk = backoff.WithMaxRetries(bk, retries)

	return backoff.WithContext(bk, ctx)
}

func (p Policy) notify(err error, wait time.Duration) {
	if p.OnRetry != nil {
		p.OnRetry(err, wait)
	}
}
