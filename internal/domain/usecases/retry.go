package usecases

import (
	"context"
	"time"

	"github.com/0xcro3dile/docqa-go/internal/domain/errs"
)

// RetryPolicy bounds how often a transient model failure is retried.
type RetryPolicy struct {
	MaxAttempts    int // total attempts, 1 disables retry
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy tries three times, backing off 500ms, then 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2,
	}
}

func (r RetryPolicy) normalized() RetryPolicy {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 1
	}
	if r.Multiplier < 1 {
		r.Multiplier = 1
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = r.InitialBackoff
	}
	return r
}

// Backoff returns the wait before the attempt following attempt (1-based).
// A provider supplied Retry-After takes precedence, still capped.
func (r RetryPolicy) Backoff(attempt int, err error) time.Duration {
	r = r.normalized()
	if ra := errs.RetryAfter(err); ra > 0 {
		if ra > r.MaxBackoff {
			return r.MaxBackoff
		}
		return ra
	}
	d := float64(r.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= r.Multiplier
		if d >= float64(r.MaxBackoff) {
			return r.MaxBackoff
		}
	}
	if time.Duration(d) > r.MaxBackoff {
		return r.MaxBackoff
	}
	return time.Duration(d)
}

// retryFunc is one attempt; attempt starts at 1.
type retryFunc func(ctx context.Context, attempt int) error

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempts are spent. It returns the number of attempts made.
func (r RetryPolicy) Do(ctx context.Context, fn retryFunc, onRetry func(attempt int, wait time.Duration, err error)) (int, error) {
	r = r.normalized()
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if attempt >= r.MaxAttempts || !errs.IsTransient(err) || ctx.Err() != nil {
			return attempt, err
		}

		wait := r.Backoff(attempt, err)
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, err
		case <-timer.C:
		}
	}
}
