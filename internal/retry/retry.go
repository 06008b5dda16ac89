// Package retry re-runs a fetcher on transient failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/amishk599/freshpost/internal/model"
)

// Fetcher is a decorator that retries transient failures with exponential
// backoff and jitter before giving up. With maxRetries zero it is a plain
// pass-through.
type Fetcher struct {
	inner      model.CandidateFetcher
	source     string
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// Wrap decorates inner with retry logic. maxRetries is the number of extra
// attempts after the first failure; baseDelay doubles on each retry.
func Wrap(inner model.CandidateFetcher, source string, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		inner:      inner,
		source:     source,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// FetchCandidates delegates, retrying on transient errors. When every attempt
// fails the last attempt's partial results are returned with its error.
func (f *Fetcher) FetchCandidates(ctx context.Context) ([]model.RawCandidate, error) {
	candidates, err := f.inner.FetchCandidates(ctx)
	if err == nil || !isRetryable(err) {
		return candidates, err
	}

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		delay := f.backoffDelay(attempt, err)

		f.logger.Warn("retrying after transient error",
			"source", f.source,
			"attempt", attempt,
			"max_retries", f.maxRetries,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return candidates, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		candidates, err = f.inner.FetchCandidates(ctx)
		if err == nil || !isRetryable(err) {
			return candidates, err
		}
	}

	return candidates, err
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// A Retry-After from the server takes precedence.
func (f *Fetcher) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	delay := f.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable reports whether err is a transient failure worth retrying:
// network errors, 429 and 5xx. Cancellation and other 4xx are final.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	return true
}
