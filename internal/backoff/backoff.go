// Package backoff retries transient failures with capped exponential delays.
package backoff

import (
	"context"
	"time"
)

// Policy describes a bounded retry schedule. The delay before attempt n+1 is
// BaseDelay * 2^(n-1), capped at MaxDelay.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Retry runs op until it succeeds, returns an error retryable rejects, the
// attempts run out or ctx is done. It returns the number of attempts made and
// the last error. A nil retryable treats every error as transient.
func Retry(ctx context.Context, p Policy, op func(ctx context.Context) error, retryable func(error) bool) (int, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return attempt, nil
		}
		if retryable != nil && !retryable(err) {
			return attempt, err
		}
		if attempt == attempts {
			return attempt, err
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return attempts, err
}
