package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/freshpost/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func timePtr(t time.Time) *time.Time { return &t }

var genAt = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func samplePosting(source, title string) model.Posting {
	return model.Posting{
		Source:   source,
		Title:    title,
		Key:      source + ":" + title,
		Location: "Remote, US",
		URL:      "https://example.com/apply/" + strings.ReplaceAll(title, " ", "-"),
		PostedAt: timePtr(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)),
	}
}

func sampleDigest() model.Digest {
	return BuildDigest([]model.Posting{
		samplePosting("Acme", "Product Manager"),
		samplePosting("Beta", "Program Manager"),
		samplePosting("Acme", "Project Manager"),
	}, genAt)
}

func TestSlackNotifier_EmptyDigest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())

	if err := n.Notify(context.Background(), model.Digest{}); err != nil {
		t.Errorf("Notify(empty) = %v, want nil", err)
	}
	if c := calls.Load(); c != 0 {
		t.Errorf("expected 0 HTTP calls, got %d", c)
	}
}

func TestSlackNotifier_OneMessagePerDigest(t *testing.T) {
	var calls atomic.Int32
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	if err := n.Notify(context.Background(), sampleDigest()); err != nil {
		t.Fatalf("Notify() = %v, want nil", err)
	}
	if c := calls.Load(); c != 1 {
		t.Errorf("expected 1 HTTP call, got %d", c)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Text != "3 new postings found" {
		t.Errorf("fallback text = %q", payload.Text)
	}
	if payload.Blocks[0].Type != "header" || payload.Blocks[0].Text.Text != "🚀 3 new postings found" {
		t.Errorf("header = %+v", payload.Blocks[0])
	}

	var sections []string
	for _, b := range payload.Blocks {
		if b.Type == "section" {
			sections = append(sections, b.Text.Text)
		}
	}
	if len(sections) != 2 {
		t.Fatalf("expected one section per source, got %d", len(sections))
	}
	if !strings.HasPrefix(sections[0], "*Acme* (2)") || !strings.HasPrefix(sections[1], "*Beta* (1)") {
		t.Errorf("sections = %q", sections)
	}
	if !strings.Contains(sections[0], "<https://example.com/apply/Product-Manager|Product Manager> · Remote, US") {
		t.Errorf("posting line missing link: %q", sections[0])
	}
}

func TestSlackNotifier_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"server error", http.StatusInternalServerError},
		{"forbidden", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
			err := n.Notify(context.Background(), sampleDigest())
			if !errors.Is(err, model.ErrDeliveryFailure) {
				t.Errorf("expected ErrDeliveryFailure, got %v", err)
			}
		})
	}
}

func TestSlackNotifier_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := calls.Add(1)
		if c == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		} else {
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	if err := n.Notify(context.Background(), sampleDigest()); err != nil {
		t.Fatalf("expected nil after retry, got %v", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls (initial + retry), got %d", c)
	}
}

func TestSlackNotifier_RateLimitedCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	n := NewSlackNotifier(srv.URL, srv.Client(), discardLogger())
	if err := n.Notify(ctx, sampleDigest()); !errors.Is(err, model.ErrDeliveryFailure) {
		t.Errorf("expected ErrDeliveryFailure, got %v", err)
	}
}

func TestBuildPayload_BlockLimit(t *testing.T) {
	var novel []model.Posting
	for i := 0; i < 80; i++ {
		novel = append(novel, samplePosting(fmt.Sprintf("Source%02d", i), "Product Manager"))
	}
	payload := buildPayload(BuildDigest(novel, genAt))

	if len(payload.Blocks) > slackMaxBlocks {
		t.Fatalf("payload has %d blocks, limit is %d", len(payload.Blocks), slackMaxBlocks)
	}
	last := payload.Blocks[len(payload.Blocks)-1]
	if last.Type != "context" || !strings.Contains(last.Elements[0].Text, "more postings not shown") {
		t.Errorf("expected trailing overflow notice, got %+v", last)
	}
}

func TestGroupSections_SplitsLongGroups(t *testing.T) {
	g := model.DigestGroup{Source: "Acme"}
	for i := 0; i < 100; i++ {
		g.Postings = append(g.Postings, samplePosting("Acme", fmt.Sprintf("Senior Product Manager %03d", i)))
	}
	sections := groupSections(g)
	if len(sections) < 2 {
		t.Fatalf("expected the group to be split, got %d section", len(sections))
	}
	lines := 0
	for _, s := range sections {
		if len(s) > slackMaxSection {
			t.Errorf("section of %d chars exceeds limit", len(s))
		}
		lines += strings.Count(s, "• ")
	}
	if lines != 100 {
		t.Errorf("expected 100 posting lines across sections, got %d", lines)
	}
}

func TestMrkdwnEscape(t *testing.T) {
	if got := mrkdwnEscape("R&D <Lead>"); got != "R&amp;D &lt;Lead&gt;" {
		t.Errorf("mrkdwnEscape = %q", got)
	}
}
