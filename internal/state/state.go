// Package state holds the two persisted documents of the novelty engine:
// the per-source history of observed keys and the per-source list of keys
// already reported.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/freshpost/internal/model"
)

// Document names in the state store.
const (
	HistoryDoc  = "history"
	NotifiedDoc = "notified"
)

// History maps source name to canonical key to the entry recorded on discovery.
type History map[string]map[string]model.HistoryEntry

// Notified maps source name to reported keys, oldest first.
type Notified map[string][]string

// State is the explicit state object a run loads at start and saves at end.
type State struct {
	History  History
	Notified Notified

	// unread names documents whose store read failed; Save leaves them alone.
	unread map[string]bool
}

// New returns empty state.
func New() *State {
	return &State{History: History{}, Notified: Notified{}}
}

// Entry returns the history entry for (source, key).
func (s *State) Entry(source, key string) (model.HistoryEntry, bool) {
	e, ok := s.History[source][key]
	return e, ok
}

// Observe records p in history if its key is absent, with FirstSeen = now.
// An existing entry is returned unchanged; FirstSeen is never rewritten.
func (s *State) Observe(p model.Posting, now time.Time) (model.HistoryEntry, bool) {
	bySource, ok := s.History[p.Source]
	if !ok {
		bySource = make(map[string]model.HistoryEntry)
		s.History[p.Source] = bySource
	}
	if e, ok := bySource[p.Key]; ok {
		return e, false
	}
	e := model.HistoryEntry{
		Title:     p.Title,
		FirstSeen: now.UTC(),
		PostedAt:  p.PostedAt,
		URL:       p.URL,
		Location:  p.Location,
	}
	bySource[p.Key] = e
	return e, true
}

// NotifiedSet returns the reported keys of source as a set.
func (s *State) NotifiedSet(source string) map[string]bool {
	keys := s.Notified[source]
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// IsNotified reports whether (source, key) was already delivered.
func (s *State) IsNotified(source, key string) bool {
	for _, k := range s.Notified[source] {
		if k == key {
			return true
		}
	}
	return false
}

// MarkNotified appends the keys of delivered postings to their source's list
// and evicts the oldest keys beyond limit. A limit of zero or less keeps
// everything. Keys absent from history are skipped.
func (s *State) MarkNotified(delivered []model.Posting, limit int) {
	touched := make(map[string]bool)
	for _, p := range delivered {
		if _, ok := s.History[p.Source][p.Key]; !ok {
			continue
		}
		if s.IsNotified(p.Source, p.Key) {
			continue
		}
		s.Notified[p.Source] = append(s.Notified[p.Source], p.Key)
		touched[p.Source] = true
	}
	if limit <= 0 {
		return
	}
	for source := range touched {
		if keys := s.Notified[source]; len(keys) > limit {
			s.Notified[source] = append([]string(nil), keys[len(keys)-limit:]...)
		}
	}
}

// Prune deletes history entries of sources that succeeded this run when the key
// was not seen this run, was never reported, and was first seen longer than
// retention ago. It returns the number of entries removed. A zero retention
// disables pruning.
func (s *State) Prune(catalog model.Catalog, now time.Time, retention time.Duration) int {
	if retention <= 0 {
		return 0
	}
	removed := 0
	for _, res := range catalog {
		if res.Failed() {
			continue
		}
		entries := s.History[res.Source]
		if len(entries) == 0 {
			continue
		}
		seen := make(map[string]bool, len(res.Postings))
		for _, p := range res.Postings {
			seen[p.Key] = true
		}
		notified := s.NotifiedSet(res.Source)
		for key, e := range entries {
			if seen[key] || notified[key] {
				continue
			}
			if now.Sub(e.FirstSeen) > retention {
				delete(entries, key)
				removed++
			}
		}
	}
	return removed
}

// Load reads both documents from store. Any store or decode failure degrades to
// empty documents; the returned error wraps model.ErrPersistenceUnavailable and
// is meant to be reported as a warning. The returned state is never nil.
//
// A document the store could not read is not written back by Save, so a
// transient outage cannot replace the stored copy with an empty one. A
// document that was read but could not be decoded is overwritten.
func Load(ctx context.Context, store model.StateStore, logger *slog.Logger) (*State, error) {
	st := New()
	var errs []error

	if unread, err := loadDoc(ctx, store, HistoryDoc, &st.History); err != nil {
		logger.Warn("history unavailable, starting empty", "error", err, "keep_stored", unread)
		st.History = History{}
		st.markUnread(HistoryDoc, unread)
		errs = append(errs, err)
	}
	if unread, err := loadDoc(ctx, store, NotifiedDoc, &st.Notified); err != nil {
		logger.Warn("notified list unavailable, starting empty", "error", err, "keep_stored", unread)
		st.Notified = Notified{}
		st.markUnread(NotifiedDoc, unread)
		errs = append(errs, err)
	}
	if st.History == nil {
		st.History = History{}
	}
	if st.Notified == nil {
		st.Notified = Notified{}
	}
	if len(errs) > 0 {
		return st, fmt.Errorf("%w: %w", model.ErrPersistenceUnavailable, errors.Join(errs...))
	}
	return st, nil
}

func (s *State) markUnread(name string, unread bool) {
	if !unread {
		return
	}
	if s.unread == nil {
		s.unread = make(map[string]bool)
	}
	s.unread[name] = true
}

// loadDoc decodes document name into v. unread reports whether the failure
// happened in the store rather than in decoding.
func loadDoc(ctx context.Context, store model.StateStore, name string, v any) (unread bool, err error) {
	data, err := store.Load(ctx, name)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return true, fmt.Errorf("load %s: %w", name, err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return false, nil
}

// Save writes both documents, except those Load could not read. Failures and
// skipped documents are reported wrapping model.ErrPersistenceUnavailable.
func Save(ctx context.Context, store model.StateStore, st *State) error {
	var errs []error
	for _, doc := range []struct {
		name string
		v    any
	}{
		{HistoryDoc, st.History},
		{NotifiedDoc, st.Notified},
	} {
		if st.unread[doc.name] {
			errs = append(errs, fmt.Errorf("skip %s: not read this run", doc.name))
			continue
		}
		data, err := json.MarshalIndent(doc.v, "", "  ")
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s: %w", doc.name, err))
			continue
		}
		if err := store.Save(ctx, doc.name, data); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", doc.name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", model.ErrPersistenceUnavailable, errors.Join(errs...))
	}
	return nil
}
