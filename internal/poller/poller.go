// Package poller collects one run's catalog: each source is polled through its
// primary strategy, falls back to a secondary when the primary yields nothing,
// and has junk text filtered out before canonical keys are assigned.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/freshpost/internal/identity"
	"github.com/amishk599/freshpost/internal/model"
)

// Classifier decides whether extracted text is UI noise rather than a posting.
type Classifier interface {
	IsNoise(text string) bool
}

// Strategy is one way of fetching a source's candidates.
type Strategy struct {
	Name    string // e.g. "api/greenhouse", "rendered"
	Fetcher model.CandidateFetcher
}

// SourcePoller owns the collection pipeline for a single source:
// fetch (primary, then fallback) → relevance → classify → resolve keys.
type SourcePoller struct {
	Name       string
	primary    Strategy
	fallback   *Strategy
	relevance  model.PostingFilter
	classifier Classifier
	logger     *slog.Logger
}

// NewSourcePoller creates a poller. fallback, relevance and classifier may be nil.
func NewSourcePoller(name string, primary Strategy, fallback *Strategy, relevance model.PostingFilter, classifier Classifier, logger *slog.Logger) *SourcePoller {
	return &SourcePoller{
		Name:       name,
		primary:    primary,
		fallback:   fallback,
		relevance:  relevance,
		classifier: classifier,
		logger:     logger,
	}
}

// Poll collects the source. It never returns an error: failures, including
// panics inside adapters, end up in SourceResult.Err wrapping
// model.ErrSourceUnavailable, possibly alongside partial postings.
func (p *SourcePoller) Poll(ctx context.Context) (res model.SourceResult) {
	res = model.SourceResult{Source: p.Name, Adapter: p.primary.Name}
	defer func() {
		if r := recover(); r != nil {
			res.Postings = nil
			res.Err = fmt.Errorf("%w: %s: panic: %v", model.ErrSourceUnavailable, p.Name, r)
			p.logger.Error("source panicked", "source", p.Name, "phase", "collect", "panic", r)
		}
	}()

	raw, err := p.run(ctx, p.primary)
	if len(raw) == 0 && p.fallback != nil && ctx.Err() == nil {
		p.logger.Info("primary yielded nothing, trying fallback",
			"source", p.Name,
			"primary", p.primary.Name,
			"fallback", p.fallback.Name,
			"error", err,
		)
		var fbErr error
		raw, fbErr = p.run(ctx, *p.fallback)
		res.Adapter = p.fallback.Name
		if fbErr == nil && len(raw) > 0 {
			err = nil
		} else {
			err = errors.Join(err, fbErr)
		}
	}

	res.Raw = len(raw)
	res.Postings, res.Dropped = p.normalize(raw)
	if err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", model.ErrSourceUnavailable, p.Name, err)
		p.logger.Error("source failed",
			"source", p.Name,
			"adapter", res.Adapter,
			"phase", "collect",
			"partial", len(res.Postings),
			"error", err,
		)
	}

	p.logger.Info("polled source",
		"source", p.Name,
		"adapter", res.Adapter,
		"raw", res.Raw,
		"dropped", res.Dropped,
		"postings", len(res.Postings),
	)
	return res
}

// Candidates runs the primary (and fallback) strategy and returns the raw
// candidates without filtering. Used by the audit view.
func (p *SourcePoller) Candidates(ctx context.Context) ([]model.RawCandidate, string, error) {
	raw, err := p.run(ctx, p.primary)
	if len(raw) == 0 && p.fallback != nil {
		fbRaw, fbErr := p.run(ctx, *p.fallback)
		return fbRaw, p.fallback.Name, errors.Join(err, fbErr)
	}
	return raw, p.primary.Name, err
}

// Normalize exposes the classify-and-key step for callers that already hold
// raw candidates.
func (p *SourcePoller) Normalize(raw []model.RawCandidate) ([]model.Posting, int) {
	return p.normalize(raw)
}

// run calls one strategy, turning a panic into an error.
func (p *SourcePoller) run(ctx context.Context, s Strategy) (raw []model.RawCandidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw, err = nil, fmt.Errorf("%s panicked: %v", s.Name, r)
		}
	}()
	if s.Fetcher == nil {
		return nil, fmt.Errorf("%s: no fetcher", s.Name)
	}
	return s.Fetcher.FetchCandidates(ctx)
}

// normalize drops irrelevant, noisy and untitled candidates, assigns
// canonical keys and keeps the first candidate for each key.
func (p *SourcePoller) normalize(raw []model.RawCandidate) ([]model.Posting, int) {
	postings := make([]model.Posting, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	dropped := 0

	for _, c := range raw {
		if p.relevance != nil && !p.relevance.Match(c) {
			dropped++
			continue
		}
		if p.classifier != nil && p.classifier.IsNoise(c.Text) {
			p.logger.Debug("dropped noise", "source", p.Name, "text", c.Text)
			dropped++
			continue
		}
		title := identity.CleanTitle(c.Text)
		if title == "" {
			p.logger.Debug("dropped candidate", "source", p.Name, "link", c.Link, "error", model.ErrParseAmbiguity)
			dropped++
			continue
		}
		key := identity.ResolveKey(p.Name, c.Text, c.Link, c.ExternalID)
		if seen[key] {
			continue
		}
		seen[key] = true

		url := c.Link
		if url == "" {
			url = c.PageURL
		}
		postings = append(postings, model.Posting{
			Source:   p.Name,
			Title:    title,
			Key:      key,
			URL:      url,
			PostedAt: c.PostedAt,
			Location: c.Location,
		})
	}
	return postings, dropped
}

// CollectAll polls sources in order, pausing delay between consecutive
// sources. One source's failure never stops the others. Cancelling ctx stops
// the remaining sources, which are reported as failed.
func CollectAll(ctx context.Context, pollers []*SourcePoller, delay time.Duration, logger *slog.Logger) model.Catalog {
	catalog := make(model.Catalog, 0, len(pollers))
	for i, p := range pollers {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			logger.Warn("collection interrupted", "source", p.Name, "error", err)
			catalog = append(catalog, model.SourceResult{
				Source: p.Name,
				Err:    fmt.Errorf("%w: %s: %w", model.ErrSourceUnavailable, p.Name, err),
			})
			continue
		}
		catalog = append(catalog, p.Poll(ctx))
	}
	return catalog
}
