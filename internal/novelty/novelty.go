// Package novelty decides which postings of a run are new enough, and not yet
// reported, to be worth a notification.
package novelty

import (
	"time"

	"github.com/amishk599/freshpost/internal/identity"
	"github.com/amishk599/freshpost/internal/model"
	"github.com/amishk599/freshpost/internal/state"
)

// Result is the outcome of one evaluation.
type Result struct {
	Novel      []model.Posting
	Discovered int // history entries created this run
	Stale      int // excluded by the freshness window
	Reported   int // excluded because already notified

	// Suppressed are fresh postings that duplicate a Novel posting under
	// another key. They count as reported once the Novel posting is delivered.
	Suppressed []model.Posting
	// Covered are fresh postings that duplicate an already notified posting
	// under another key. They count as reported right away.
	Covered []model.Posting
}

// EffectiveTime is the time a posting's freshness is measured from: the
// catalog's posted_at, else the recorded posted_at, else first_seen.
func EffectiveTime(p model.Posting, e model.HistoryEntry) time.Time {
	switch {
	case p.PostedAt != nil:
		return *p.PostedAt
	case e.PostedAt != nil:
		return *e.PostedAt
	default:
		return e.FirstSeen
	}
}

// Fresh reports whether effective lies within window of now. The boundary is
// closed: exactly window old is still fresh.
func Fresh(now, effective time.Time, window time.Duration) bool {
	return now.Sub(effective) <= window
}

// ComputeNovel walks the catalog in order, records every unseen key in history
// and returns the postings that are fresh and not yet notified. History is
// mutated regardless of what happens to the result; notified is only read.
//
// Fresh postings sharing (source, normalized title, url) are one visible
// posting: the first is reported and the rest are returned as Suppressed, or
// as Covered when a twin was already notified.
func ComputeNovel(catalog model.Catalog, st *state.State, now time.Time, window time.Duration) Result {
	var res Result
	type dedupKey struct{ source, title, url string }
	dk := func(p model.Posting) dedupKey {
		return dedupKey{p.Source, identity.NormalizeTitle(p.Title), p.URL}
	}
	notified := make(map[string]map[string]bool)

	var fresh []model.Posting
	reported := make(map[dedupKey]bool)
	for _, sr := range catalog {
		if _, ok := notified[sr.Source]; !ok {
			notified[sr.Source] = st.NotifiedSet(sr.Source)
		}
		for _, p := range sr.Postings {
			entry, inserted := st.Observe(p, now)
			if inserted {
				res.Discovered++
			}
			if !Fresh(now, EffectiveTime(p, entry), window) {
				res.Stale++
				continue
			}
			if notified[p.Source][p.Key] {
				res.Reported++
				reported[dk(p)] = true
				continue
			}
			fresh = append(fresh, p)
		}
	}

	emitted := make(map[dedupKey]bool)
	for _, p := range fresh {
		k := dk(p)
		switch {
		case reported[k]:
			res.Covered = append(res.Covered, p)
		case emitted[k]:
			res.Suppressed = append(res.Suppressed, p)
		default:
			emitted[k] = true
			res.Novel = append(res.Novel, p)
		}
	}
	return res
}
