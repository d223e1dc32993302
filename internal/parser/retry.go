package parser

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryPolicy bounds how a provider client retries a failed call.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy is used when a provider config leaves the delays unset.
func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{MaxRetries: maxRetries, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}
}

// delay returns the wait before attempt n (1-based), honoring Retry-After.
func (p RetryPolicy) delay(attempt int, err error) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) && rlErr.RetryAfter > d {
		d = rlErr.RetryAfter
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do runs call until it succeeds, returns a non-retryable error, or the
// retry budget is spent. The last error is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, provider string, call func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = call(ctx)
		if err == nil || attempt >= p.MaxRetries || !IsRetryable(err) {
			return err
		}
		wait := p.delay(attempt+1, err)
		slog.Warn("completion.retry",
			"provider", provider,
			"attempt", attempt+1,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}
