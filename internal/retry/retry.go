// Package retry runs an operation under a bounded exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spigell/hire-responder/internal/utils"
)

var sleep = utils.WaitFor

// Policy describes how many times to try an operation and how long to wait
// between attempts. The wait before attempt n+1 is Multiplier * 2^(n-1),
// clamped to [Min, Max].
type Policy struct {
	Attempts   int
	Multiplier time.Duration
	Min        time.Duration
	Max        time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries every error.
	Retryable func(err error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
	// Wait overrides the context-aware sleep between attempts.
	Wait func(ctx context.Context, d time.Duration) error
}

// Default matches the marketplace client: 3 attempts, 2s to 10s.
func Default() Policy {
	return Policy{
		Attempts:   3,
		Multiplier: time.Second,
		Min:        2 * time.Second,
		Max:        10 * time.Second,
	}
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	wait := time.Duration(float64(p.Multiplier) * math.Pow(2, float64(attempt-1)))
	if wait < p.Min {
		wait = p.Min
	}
	if p.Max > 0 && wait > p.Max {
		wait = p.Max
	}

	return wait
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. The last error is returned unwrapped, except when
// ctx ends during a wait: then the context error wraps it.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}

		if attempt == attempts {
			break
		}

		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}

		waitFn := sleep
		if p.Wait != nil {
			waitFn = p.Wait
		}

		if waitErr := waitFn(ctx, wait); waitErr != nil {
			return fmt.Errorf("%w (last error: %w)", waitErr, err)
		}
	}

	return err
}
