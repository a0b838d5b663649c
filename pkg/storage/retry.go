package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy retries object transfers with exponential backoff.
type RetryPolicy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64
}

// DefaultRetryPolicy returns the policy used when the configuration sets
// no attempts.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:     3,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.25,
	}
}

// retryPolicyFor applies the transfer settings of cfg to the default policy.
func retryPolicyFor(cfg Config) *RetryPolicy {
	rp := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		rp.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.RetryDelay > 0 {
		rp.InitialDelay = cfg.RetryDelay
	}
	return rp
}

// Execute runs fn until it succeeds, the attempts are used up, or ctx is
// done. Context errors returned by fn are not retried.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func(attempt int) error) error {
	attempts := max(rp.MaxAttempts, 1)
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(rp.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

// delay returns the backoff before the retry following attempt.
func (rp *RetryPolicy) delay(attempt int) time.Duration {
	d := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt))
	if d > float64(rp.MaxDelay) {
		d = float64(rp.MaxDelay)
	}

	if rp.RandomizeFactor > 0 {
		delta := d * rp.RandomizeFactor
		d = d - delta + rand.Float64()*2*delta //nolint:gosec // jitter only
	}
	return time.Duration(d)
}
