package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"invoicesplit/internal/domain"
	"invoicesplit/internal/port"
)

// route is one provider in a fallback chain. A rate-limited route is skipped
// until blockedUntil passes.
type route struct {
	name      string
	completer port.TextCompleter

	mu           sync.Mutex
	blockedUntil time.Time
}

func (r *route) blocked(now time.Time) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blockedUntil, now.Before(r.blockedUntil)
}

func (r *route) block(until time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blockedUntil = until
}

// soonest tracks the earliest time any blocked route reopens.
type soonest struct{ t time.Time }

func (s *soonest) observe(t time.Time) {
	if s.t.IsZero() || t.Before(s.t) {
		s.t = t
	}
}

// FallbackCompleter tries completers in order, skipping those without a
// credential and those blocked after a rate limit. It implements
// port.TextCompleter.
type FallbackCompleter struct {
	routes []*route
}

// NewFallbackCompleter creates a FallbackCompleter from an ordered list of completers and their names.
func NewFallbackCompleter(completers []port.TextCompleter, names []string) *FallbackCompleter {
	routes := make([]*route, len(completers))
	for i, c := range completers {
		routes[i] = &route{name: names[i], completer: c}
	}
	return &FallbackCompleter{routes: routes}
}

// CheckCredential succeeds when at least one completer has a credential.
func (f *FallbackCompleter) CheckCredential() error {
	for _, r := range f.routes {
		if r.completer.CheckCredential() == nil {
			return nil
		}
	}
	return domain.ErrMissingCredential
}

// Complete returns the first successful completion. When every usable route
// is rate limited the result is a RateLimitError for provider "all" that
// expires when the first route reopens.
func (f *FallbackCompleter) Complete(ctx context.Context, input port.CompletionInput) (*port.CompletionOutput, error) {
	now := time.Now()
	var (
		reopen    soonest
		lastErr   error
		otherFail bool
	)

	for _, r := range f.routes {
		if r.completer.CheckCredential() != nil {
			slog.Debug("completion.fallback.skip", "provider", r.name, "reason", "no credential")
			continue
		}
		if until, blocked := r.blocked(now); blocked {
			slog.Info("completion.fallback.skip", "provider", r.name, "blocked_until", until.Format(time.RFC3339))
			reopen.observe(until)
			continue
		}

		out, err := r.completer.Complete(ctx, input)
		if err == nil {
			return out, nil
		}
		slog.Warn("completion.fallback.failed", "provider", r.name, "error", err)
		lastErr = err

		var rlErr *RateLimitError
		if !errors.As(err, &rlErr) {
			otherFail = true
			continue
		}
		until := now.Add(rlErr.RetryAfter)
		r.block(until)
		reopen.observe(until)
	}

	switch {
	case lastErr == nil && reopen.t.IsZero():
		return nil, domain.ErrMissingCredential
	case otherFail:
		return nil, fmt.Errorf("all completion providers failed: %w", lastErr)
	default:
		wait := time.Until(reopen.t)
		if wait < time.Second {
			wait = time.Second
		}
		return nil, NewRateLimitError("all", errors.New("all completion providers rate limited"), int(wait.Seconds()))
	}
}
