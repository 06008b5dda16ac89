package state

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amishk599/freshpost/internal/model"
)

type fakeStore struct {
	docs    map[string][]byte
	loadErr error
	saveErr error
}

func (f *fakeStore) Load(_ context.Context, name string) ([]byte, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	data, ok := f.docs[name]
	if !ok {
		return nil, model.ErrNotFound
	}
	return data, nil
}

func (f *fakeStore) Save(_ context.Context, name string, data []byte) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.docs == nil {
		f.docs = map[string][]byte{}
	}
	f.docs[name] = data
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func posting(source, key string) model.Posting {
	return model.Posting{Source: source, Key: key, Title: key, URL: "https://example.com/" + key}
}

func TestObserve_FirstSeenImmutable(t *testing.T) {
	st := New()
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	e, inserted := st.Observe(posting("Acme", "Acme:1"), t0)
	if !inserted || !e.FirstSeen.Equal(t0) {
		t.Fatalf("first Observe = %+v, %v", e, inserted)
	}
	e, inserted = st.Observe(posting("Acme", "Acme:1"), t0.Add(time.Hour))
	if inserted {
		t.Error("second Observe should not insert")
	}
	if !e.FirstSeen.Equal(t0) {
		t.Errorf("FirstSeen = %v, want %v", e.FirstSeen, t0)
	}
}

func TestMarkNotified_FIFOTrim(t *testing.T) {
	st := New()
	now := time.Now()
	var ps []model.Posting
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		p := posting("Acme", k)
		st.Observe(p, now)
		ps = append(ps, p)
	}

	st.MarkNotified(ps[:3], 4)
	st.MarkNotified(ps[1:], 4) // b, c repeat

	got := st.Notified["Acme"]
	want := []string{"b", "c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("Notified = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Notified = %v, want %v", got, want)
		}
	}
}

func TestMarkNotified_SkipsKeysOutsideHistory(t *testing.T) {
	st := New()
	st.MarkNotified([]model.Posting{posting("Acme", "ghost")}, 10)
	if len(st.Notified["Acme"]) != 0 {
		t.Errorf("Notified = %v, want empty", st.Notified["Acme"])
	}
}

func TestPrune(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	old := now.Add(-100 * 24 * time.Hour)

	st := New()
	st.History["Acme"] = map[string]model.HistoryEntry{
		"stale":    {FirstSeen: old},
		"reported": {FirstSeen: old},
		"current":  {FirstSeen: old},
		"recent":   {FirstSeen: now.Add(-time.Hour)},
	}
	st.History["Broken"] = map[string]model.HistoryEntry{
		"stale": {FirstSeen: old},
	}
	st.Notified["Acme"] = []string{"reported"}

	catalog := model.Catalog{
		{Source: "Acme", Postings: []model.Posting{posting("Acme", "current")}},
		{Source: "Broken", Err: model.ErrSourceUnavailable},
	}

	if n := st.Prune(catalog, now, 90*24*time.Hour); n != 1 {
		t.Errorf("Prune removed %d, want 1", n)
	}
	if _, ok := st.Entry("Acme", "stale"); ok {
		t.Error("stale entry should be pruned")
	}
	for _, k := range []string{"reported", "current", "recent"} {
		if _, ok := st.Entry("Acme", k); !ok {
			t.Errorf("entry %q should be kept", k)
		}
	}
	if _, ok := st.Entry("Broken", "stale"); !ok {
		t.Error("failed source must not be pruned")
	}
	if n := st.Prune(catalog, now, 0); n != 0 {
		t.Errorf("zero retention removed %d", n)
	}
}

func TestLoadSave_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	st := New()
	p := posting("Acme", "Acme:1")
	st.Observe(p, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	st.MarkNotified([]model.Posting{p}, 200)

	if err := Save(ctx, store, st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(ctx, store, discardLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.IsNotified("Acme", "Acme:1") {
		t.Error("notified key lost")
	}
	e, ok := got.Entry("Acme", "Acme:1")
	if !ok || e.Title != "Acme:1" || e.FirstSeen.Year() != 2025 {
		t.Errorf("history entry = %+v, %v", e, ok)
	}
}

func TestLoad_Degrades(t *testing.T) {
	ctx := context.Background()

	st, err := Load(ctx, &fakeStore{}, discardLogger())
	if err != nil {
		t.Fatalf("missing documents should not be an error, got %v", err)
	}
	if st.History == nil || st.Notified == nil {
		t.Fatal("state maps must be initialized")
	}

	st, err = Load(ctx, &fakeStore{loadErr: errors.New("connection refused")}, discardLogger())
	if !errors.Is(err, model.ErrPersistenceUnavailable) {
		t.Errorf("error = %v, want ErrPersistenceUnavailable", err)
	}
	if st == nil || len(st.History) != 0 {
		t.Errorf("degraded state = %+v, want empty", st)
	}

	st, err = Load(ctx, &fakeStore{docs: map[string][]byte{HistoryDoc: []byte("{not json")}}, discardLogger())
	if !errors.Is(err, model.ErrPersistenceUnavailable) {
		t.Errorf("error = %v, want ErrPersistenceUnavailable", err)
	}
	if st.History == nil {
		t.Error("history must be reset to empty on decode failure")
	}
}

func TestSave_Failure(t *testing.T) {
	err := Save(context.Background(), &fakeStore{saveErr: errors.New("disk full")}, New())
	if !errors.Is(err, model.ErrPersistenceUnavailable) {
		t.Errorf("error = %v, want ErrPersistenceUnavailable", err)
	}
}

func TestSave_SkipsDocumentsThatFailedToLoad(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{docs: map[string][]byte{
		HistoryDoc:  []byte(`{"Acme":{}}`),
		NotifiedDoc: []byte(`{"Acme":["Acme:1"]}`),
	}}

	store.loadErr = errors.New("503 from gist")
	st, err := Load(ctx, store, discardLogger())
	if !errors.Is(err, model.ErrPersistenceUnavailable) {
		t.Fatalf("Load error = %v", err)
	}
	store.loadErr = nil

	p := posting("Acme", "Acme:2")
	st.Observe(p, time.Now())
	st.MarkNotified([]model.Posting{p}, 200)

	if err := Save(ctx, store, st); !errors.Is(err, model.ErrPersistenceUnavailable) {
		t.Errorf("Save should report the skipped documents, got %v", err)
	}
	if got := string(store.docs[NotifiedDoc]); got != `{"Acme":["Acme:1"]}` {
		t.Errorf("stored notified list was overwritten: %s", got)
	}
	if got := string(store.docs[HistoryDoc]); got != `{"Acme":{}}` {
		t.Errorf("stored history was overwritten: %s", got)
	}
}

func TestSave_OverwritesUndecodableDocument(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{docs: map[string][]byte{HistoryDoc: []byte("{not json")}}

	st, _ := Load(ctx, store, discardLogger())
	st.Observe(posting("Acme", "Acme:1"), time.Now())
	if err := Save(ctx, store, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := Load(ctx, store, discardLogger()); err != nil {
		t.Errorf("history should be readable after save, got %v", err)
	}
}
