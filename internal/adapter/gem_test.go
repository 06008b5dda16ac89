package adapter

import (
	"context"
	"testing"
)

func TestGemFetchCandidates(t *testing.T) {
	payload := `[
		{"id": "g1", "title": "Product Manager", "location": {"name": "Boston"}, "absolute_url": "https://jobs.gem.com/acme/g1", "first_published_at": "2026-02-01T00:00:00Z", "updated_at": "2026-02-05T00:00:00Z"},
		{"id": "g2", "title": "Project Engineer", "location": {"name": "Denver"}, "absolute_url": "https://jobs.gem.com/acme/g2", "updated_at": "2026-02-06T00:00:00Z"},
		{"id": "g3", "title": "Analyst", "absolute_url": "https://jobs.gem.com/acme/g3"}
	]`
	srv := serveJSON(t, "/acme/job_posts/", payload)

	got, err := NewGemAdapter("Acme", "acme", srv.URL, srv.Client(), "").FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0].PostedAt == nil || got[0].PostedAt.Day() != 1 {
		t.Errorf("expected first_published_at, got %v", got[0].PostedAt)
	}
	if got[1].PostedAt != nil {
		t.Errorf("updated_at must not be used as the posting time, got %v", got[1].PostedAt)
	}
	if got[2].PostedAt != nil {
		t.Errorf("expected nil PostedAt, got %v", got[2].PostedAt)
	}
}
