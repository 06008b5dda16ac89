package model

import (
	"context"
	"time"
)

// RawCandidate is a single piece of scraped or fetched text that might be a
// posting. It lives only for the duration of one run.
type RawCandidate struct {
	Source     string     // source name from config
	Text       string     // extracted text (title for API sources)
	Link       string     // optional, absolute when resolvable
	ExternalID string     // optional, native id from structured sources
	PostedAt   *time.Time // optional, real posting time when the source supplies one
	Location   string     // optional
	PageURL    string     // page the candidate was extracted from, shown when Link is empty
}

// Posting is a RawCandidate that survived junk filtering and has a canonical key.
type Posting struct {
	Source   string
	Title    string // cleaned and length-bounded
	Key      string // canonical key, see identity.ResolveKey
	URL      string
	PostedAt *time.Time
	Location string
}

// HistoryEntry records the first time a key was observed for a source.
// FirstSeen is immutable once written.
type HistoryEntry struct {
	Title     string     `json:"title"`
	FirstSeen time.Time  `json:"first_seen"`
	PostedAt  *time.Time `json:"posted_at,omitempty"`
	URL       string     `json:"url,omitempty"`
	Location  string     `json:"location,omitempty"`
}

// SourceResult is the outcome of collecting one source during a run.
type SourceResult struct {
	Source   string
	Adapter  string // kind of the adapter whose output was used
	Postings []Posting
	Raw      int   // candidates before junk filtering
	Dropped  int   // candidates classified as noise or without a key
	Err      error // non-nil when the source failed (possibly with partial results)
}

// Failed reports whether the source ended in the Failed(source) branch.
func (r SourceResult) Failed() bool {
	return r.Err != nil
}

// Catalog is the per-run set of normalized postings, in source order.
type Catalog []SourceResult

// Postings flattens the catalog in source order.
func (c Catalog) Postings() []Posting {
	var out []Posting
	for _, r := range c {
		out = append(out, r.Postings...)
	}
	return out
}

// Digest is the rendered unit handed to a Notifier: novel postings grouped by source.
type Digest struct {
	GeneratedAt time.Time
	Groups      []DigestGroup
}

// DigestGroup holds the novel postings of one source.
type DigestGroup struct {
	Source   string
	Postings []Posting
}

// Total returns the number of postings across all groups.
func (d Digest) Total() int {
	n := 0
	for _, g := range d.Groups {
		n += len(g.Postings)
	}
	return n
}

// CandidateFetcher produces raw candidates from one source.
// Implementations may return partial results together with an error.
type CandidateFetcher interface {
	FetchCandidates(ctx context.Context) ([]RawCandidate, error)
}

// Notifier delivers a digest. A nil error means delivery was confirmed.
type Notifier interface {
	Notify(ctx context.Context, digest Digest) error
}

// StateStore persists named JSON documents. Load returns ErrNotFound when the
// document does not exist yet.
type StateStore interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}

// PostingFilter decides whether a candidate is relevant to the user.
type PostingFilter interface {
	Match(c RawCandidate) bool
}
