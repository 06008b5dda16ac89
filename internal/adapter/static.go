package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/amishk599/freshpost/internal/model"
)

// StaticAdapter fetches a page with a single GET and extracts candidates with
// a selector chain. No JavaScript is executed.
type StaticAdapter struct {
	source    string
	pageURL   string
	chain     SelectorChain
	userAgent string
	timeout   time.Duration
	transport http.RoundTripper
}

// NewStaticAdapter creates an adapter for a server-rendered page. A nil
// transport uses colly's default.
func NewStaticAdapter(source, pageURL string, chain SelectorChain, userAgent string, timeout time.Duration, transport http.RoundTripper) *StaticAdapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &StaticAdapter{
		source:    source,
		pageURL:   pageURL,
		chain:     chain,
		userAgent: userAgent,
		timeout:   timeout,
		transport: transport,
	}
}

// FetchCandidates visits the page once and applies the selector chain.
func (a *StaticAdapter) FetchCandidates(ctx context.Context) ([]model.RawCandidate, error) {
	body, finalURL, err := a.fetch(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := parseDocument(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("static parse for %s: %w", a.source, err)
	}
	candidates, _ := a.chain.Extract(doc, finalURL, a.source)
	return candidates, nil
}

func (a *StaticAdapter) fetch(ctx context.Context) ([]byte, *url.URL, error) {
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	if a.userAgent != "" {
		c.UserAgent = a.userAgent
	}
	c.SetRequestTimeout(a.timeout)
	if a.transport != nil {
		c.WithTransport(a.transport)
	}

	var (
		body     []byte
		finalURL *url.URL
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
		finalURL = r.Request.URL
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 && r.StatusCode != http.StatusOK {
			fetchErr = &model.HTTPError{
				StatusCode: r.StatusCode,
				RetryAfter: retryAfterOf(r),
				Err:        fmt.Errorf("static fetch for %s: unexpected status %d", a.source, r.StatusCode),
			}
			return
		}
		fetchErr = fmt.Errorf("static fetch for %s: %w", a.source, err)
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(a.pageURL)
	}()

	select {
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("static fetch for %s canceled: %w", a.source, ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return nil, nil, fetchErr
		}
		if err != nil {
			return nil, nil, fmt.Errorf("static fetch for %s: %w", a.source, err)
		}
	}
	if finalURL == nil {
		return nil, nil, errors.New("static fetch for " + a.source + ": empty response")
	}
	return body, finalURL, nil
}

func retryAfterOf(r *colly.Response) time.Duration {
	if r.Headers == nil {
		return 0
	}
	return parseRetryAfter(r.Headers.Get("Retry-After"))
}
