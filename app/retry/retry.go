// Package retry is the single bounded-retry-with-backoff utility shared
// by the page fetch, download and assembly layers, each parameterized
// with its own policy instead of repeating the control flow.
package retry

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// Do runs op up to attempts times, waiting between failed attempts
// according to the given policy. The context cancels both the waits and
// further attempts.
func Do(ctx context.Context, attempts int, policy backoff.BackOff, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	policy.Reset()
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx)
	return backoff.Retry(op, b)
}

// Constant waits a fixed delay between attempts.
func Constant(d time.Duration) backoff.BackOff {
	return backoff.NewConstantBackOff(d)
}

// Exponential doubles the delay between attempts starting from initial,
// capped at max, without randomization so waits stay predictable.
func Exponential(initial, max time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return b
}

// Linear waits attempt-index multiples of step, capped at max. Used for
// transport timeouts where the upstream benefits from gradually longer
// pauses.
type Linear struct {
	Step    time.Duration
	Max     time.Duration
	attempt int
}

var _ backoff.BackOff = (*Linear)(nil)

func NewLinear(step, max time.Duration) *Linear {
	return &Linear{Step: step, Max: max}
}

func (l *Linear) NextBackOff() time.Duration {
	l.attempt++
	d := time.Duration(l.attempt) * l.Step
	if d > l.Max {
		d = l.Max
	}
	return d
}

func (l *Linear) Reset() {
	l.attempt = 0
}

// Sleep is a context-aware sleep for call sites that pace themselves
// outside of a retry loop (page and producer spacing, split-policy
// download waits).
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
