// Package ratelimit spaces out requests to the same origin host.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amishk599/freshpost/internal/model"
)

// OriginLimiter enforces a minimum delay between requests to the same origin.
// Fetchers that share an origin must share a limiter.
type OriginLimiter struct {
	mu       sync.Mutex
	lastCall map[string]time.Time // key: origin host
	delayFor func(origin string) time.Duration
}

// NewOriginLimiter creates a limiter with one minimum delay for every origin.
func NewOriginLimiter(minDelay time.Duration) *OriginLimiter {
	return NewOriginLimiterFunc(func(string) time.Duration { return minDelay })
}

// NewOriginLimiterFunc creates a limiter whose delay is chosen per origin,
// e.g. config.RateLimitConfig.MinDelayFor.
func NewOriginLimiterFunc(delayFor func(origin string) time.Duration) *OriginLimiter {
	return &OriginLimiter{
		lastCall: make(map[string]time.Time),
		delayFor: delayFor,
	}
}

// Wait blocks until enough time has passed since the last request to origin.
// Returns an error if the context is cancelled while waiting.
func (r *OriginLimiter) Wait(ctx context.Context, origin string) error {
	minDelay := r.delayFor(origin)

	r.mu.Lock()
	last, ok := r.lastCall[origin]
	now := time.Now()

	if !ok || now.Sub(last) >= minDelay {
		r.lastCall[origin] = now
		r.mu.Unlock()
		return nil
	}

	remaining := minDelay - now.Sub(last)
	// Reserve the slot so concurrent callers queue behind this one.
	r.lastCall[origin] = now.Add(remaining)
	r.mu.Unlock()

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", origin, ctx.Err())
	case <-timer.C:
	}
	return nil
}

// Fetcher is a decorator that waits for the origin's slot before delegating.
type Fetcher struct {
	inner   model.CandidateFetcher
	limiter *OriginLimiter
	origin  string
}

// Wrap decorates inner with origin-level rate limiting.
func Wrap(inner model.CandidateFetcher, limiter *OriginLimiter, origin string) *Fetcher {
	return &Fetcher{
		inner:   inner,
		limiter: limiter,
		origin:  origin,
	}
}

// FetchCandidates waits for the limiter, then delegates.
func (f *Fetcher) FetchCandidates(ctx context.Context) ([]model.RawCandidate, error) {
	if err := f.limiter.Wait(ctx, f.origin); err != nil {
		return nil, err
	}
	return f.inner.FetchCandidates(ctx)
}
