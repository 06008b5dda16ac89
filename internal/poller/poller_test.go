package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amishk599/freshpost/internal/config"
	"github.com/amishk599/freshpost/internal/filter"
	"github.com/amishk599/freshpost/internal/model"
)

// MockFetcher returns canned candidates and an error, counting calls.
type MockFetcher struct {
	Candidates []model.RawCandidate
	Err        error
	Calls      int
}

func (m *MockFetcher) FetchCandidates(_ context.Context) ([]model.RawCandidate, error) {
	m.Calls++
	return m.Candidates, m.Err
}

// PanicFetcher blows up on every call.
type PanicFetcher struct{}

func (PanicFetcher) FetchCandidates(context.Context) ([]model.RawCandidate, error) {
	panic("selector engine exploded")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func classifier() Classifier {
	return filter.NewNoiseClassifier(config.ClassifierConfig{})
}

func cand(text, link string) model.RawCandidate {
	return model.RawCandidate{Source: "Acme", Text: text, Link: link}
}

func TestPoll_PrimaryOnly(t *testing.T) {
	primary := &MockFetcher{Candidates: []model.RawCandidate{
		cand("Senior Product Manager", "https://acme.example/jobs/1"),
		cand("Accept all cookies", ""),
		cand("Engineering", ""),
		cand("Senior Product Manager", "https://acme.example/jobs/1"),
	}}
	fallback := &MockFetcher{}
	p := NewSourcePoller("Acme", Strategy{"static", primary}, &Strategy{"rendered", fallback}, nil, classifier(), testLogger())

	res := p.Poll(context.Background())
	if res.Failed() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if fallback.Calls != 0 {
		t.Error("fallback must not run when primary yields candidates")
	}
	if res.Adapter != "static" || res.Raw != 4 || res.Dropped != 2 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Postings) != 1 {
		t.Fatalf("expected 1 posting after noise and key dedup, got %d", len(res.Postings))
	}
	if res.Postings[0].Key == "" || res.Postings[0].Source != "Acme" {
		t.Errorf("posting = %+v", res.Postings[0])
	}
}

func TestPoll_FallbackOnEmptyPrimary(t *testing.T) {
	primary := &MockFetcher{Err: &model.HTTPError{StatusCode: 500}}
	fallback := &MockFetcher{Candidates: []model.RawCandidate{
		{Source: "Acme", Text: "Program Manager, Devices", PageURL: "https://acme.example/careers"},
	}}
	p := NewSourcePoller("Acme", Strategy{"api/greenhouse", primary}, &Strategy{"rendered", fallback}, nil, classifier(), testLogger())

	res := p.Poll(context.Background())
	if res.Failed() {
		t.Fatalf("fallback success should clear the primary error, got %v", res.Err)
	}
	if res.Adapter != "rendered" || len(res.Postings) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Postings[0].URL != "https://acme.example/careers" {
		t.Errorf("expected page URL as display link, got %q", res.Postings[0].URL)
	}
}

func TestPoll_BothStrategiesFail(t *testing.T) {
	p := NewSourcePoller("Acme",
		Strategy{"api/lever", &MockFetcher{Err: errors.New("dial tcp: timeout")}},
		&Strategy{"rendered", &MockFetcher{Err: errors.New("chrome not found")}},
		nil, classifier(), testLogger())

	res := p.Poll(context.Background())
	if !errors.Is(res.Err, model.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", res.Err)
	}
	if len(res.Postings) != 0 {
		t.Errorf("expected zero postings, got %d", len(res.Postings))
	}
}

func TestPoll_PanicIsContained(t *testing.T) {
	p := NewSourcePoller("Acme", Strategy{"rendered", PanicFetcher{}}, nil, nil, classifier(), testLogger())
	res := p.Poll(context.Background())
	if !errors.Is(res.Err, model.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", res.Err)
	}
}

func TestPoll_RelevanceFilterRunsBeforeFallbackDecision(t *testing.T) {
	primary := &MockFetcher{Candidates: []model.RawCandidate{cand("Staff Software Engineer", "")}}
	fallback := &MockFetcher{}
	relevance := filter.NewTitleAndLocationFilter([]string{"product"}, nil, nil, nil)
	p := NewSourcePoller("Acme", Strategy{"api/ashby", primary}, &Strategy{"rendered", fallback}, relevance, classifier(), testLogger())

	res := p.Poll(context.Background())
	if fallback.Calls != 0 {
		t.Error("irrelevant candidates still count as a non-empty primary")
	}
	if len(res.Postings) != 0 || res.Dropped != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestPoll_PartialResultsKeepError(t *testing.T) {
	primary := &MockFetcher{
		Candidates: []model.RawCandidate{cand("Product Manager", "https://acme.example/1")},
		Err:        errors.New("page 2 timed out"),
	}
	res := NewSourcePoller("Acme", Strategy{"api/workday", primary}, nil, nil, classifier(), testLogger()).Poll(context.Background())
	if !res.Failed() || len(res.Postings) != 1 {
		t.Errorf("expected partial postings with error, got %+v", res)
	}
}

func TestCollectAll_IsolatesFailures(t *testing.T) {
	good := NewSourcePoller("Good", Strategy{"static", &MockFetcher{Candidates: []model.RawCandidate{
		{Source: "Good", Text: "Product Manager", Link: "https://good.example/1"},
	}}}, nil, nil, classifier(), testLogger())
	bad := NewSourcePoller("Bad", Strategy{"rendered", PanicFetcher{}}, nil, nil, classifier(), testLogger())
	later := NewSourcePoller("Later", Strategy{"api/gem", &MockFetcher{Candidates: []model.RawCandidate{
		{Source: "Later", Text: "Project Manager", ExternalID: "9"},
	}}}, nil, nil, classifier(), testLogger())

	start := time.Now()
	catalog := CollectAll(context.Background(), []*SourcePoller{good, bad, later}, 20*time.Millisecond, testLogger())
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Errorf("expected two inter-source delays, took %v", elapsed)
	}

	if len(catalog) != 3 {
		t.Fatalf("expected 3 results, got %d", len(catalog))
	}
	if catalog[0].Failed() || !catalog[1].Failed() || catalog[2].Failed() {
		t.Errorf("unexpected failure pattern: %v / %v / %v", catalog[0].Err, catalog[1].Err, catalog[2].Err)
	}
	if got := catalog.Postings(); len(got) != 2 || got[1].Key != "Later:9" {
		t.Errorf("postings = %+v", got)
	}
}

func TestCollectAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &MockFetcher{}
	p := NewSourcePoller("Acme", Strategy{"static", f}, nil, nil, classifier(), testLogger())

	catalog := CollectAll(ctx, []*SourcePoller{p}, 0, testLogger())
	if len(catalog) != 1 || !catalog[0].Failed() || f.Calls != 0 {
		t.Errorf("expected cancelled source to be failed without fetching, got %+v (calls %d)", catalog, f.Calls)
	}
}
