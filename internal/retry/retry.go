// Package retry centralizes the backoff discipline used for upstream calls.
// Call sites differ only in their Policy values; the mechanics (exponential
// delay with jitter, honoring server retry hints, permanent failures) are
// shared.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy parameterizes a retry loop for one call site.
type Policy struct {
	// MaxTries is the total attempt ceiling, first attempt included.
	MaxTries uint
	// InitialInterval is the delay before the second attempt; it doubles
	// on each subsequent failure, with jitter.
	InitialInterval time.Duration
	// MaxInterval caps the computed exponential delay.
	MaxInterval time.Duration
	// MaxRetryAfter caps a server-provided retry hint so a hostile or
	// confused upstream cannot stall a cycle indefinitely.
	MaxRetryAfter time.Duration
}

// CatalogPolicy is used for Steam API batch fetches.
var CatalogPolicy = Policy{
	MaxTries:        3,
	InitialInterval: 1 * time.Second,
	MaxInterval:     30 * time.Second,
	MaxRetryAfter:   60 * time.Second,
}

// DeliveryPolicy is used for Discord webhook deliveries.
var DeliveryPolicy = Policy{
	MaxTries:        5,
	InitialInterval: 1 * time.Second,
	MaxInterval:     60 * time.Second,
	MaxRetryAfter:   60 * time.Second,
}

func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = 2
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// Do runs op until it succeeds, returns a permanent error, or the policy's
// attempt ceiling is reached. notify (optional) is called before each sleep
// with the attempt's error and the chosen delay.
func Do[T any](ctx context.Context, p Policy, op func() (T, error), notify func(err error, next time.Duration)) (T, error) {
	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.newBackOff()),
		backoff.WithMaxTries(p.MaxTries),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(backoff.Notify(notify)))
	}
	return backoff.Retry(ctx, backoff.Operation[T](op), opts...)
}

// Permanent marks err as non-retryable; Do stops immediately and returns it.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// After converts a server-provided retry hint into a retryable error that
// makes Do sleep for that duration (capped at MaxRetryAfter) instead of the
// exponential delay.
func (p Policy) After(d time.Duration) error {
	if d <= 0 {
		d = time.Second
	}
	if p.MaxRetryAfter > 0 && d > p.MaxRetryAfter {
		d = p.MaxRetryAfter
	}
	return &backoff.RetryAfterError{Duration: d}
}
