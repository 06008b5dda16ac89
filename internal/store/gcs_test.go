package store

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// fakeGCS implements multipart uploads and media downloads of the JSON API.
type fakeGCS struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeGCS) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/upload/"):
		name := r.URL.Query().Get("name")
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		var meta struct {
			Name string `json:"name"`
		}
		part, err := mr.NextPart()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewDecoder(part).Decode(&meta)
		if name == "" {
			name = meta.Name
		}
		part, err = mr.NextPart()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(part)
		f.objects[name] = data
		json.NewEncoder(w).Encode(map[string]any{"bucket": "state", "name": name, "size": strconv.Itoa(len(data))})

	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/o/"):
		name := r.URL.Path[strings.Index(r.URL.Path, "/o/")+3:]
		data, ok := f.objects[name]
		if !ok {
			http.Error(w, `{"error":{"code":404,"message":"No such object"}}`, http.StatusNotFound)
			return
		}
		w.Write(data)

	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotImplemented)
	}
}

func newTestGCS(t *testing.T, prefix string) (*GCSStore, *fakeGCS) {
	t.Helper()
	f := &fakeGCS{objects: make(map[string][]byte)}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
		storage.WithJSONReads(),
	)
	if err != nil {
		t.Fatalf("storage.NewClient: %v", err)
	}
	s, err := NewGCSStore(client, "state", prefix)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s, f
}

func TestGCSStore(t *testing.T) {
	s, _ := newTestGCS(t, "")
	exerciseStore(t, s)
}

func TestGCSStore_ObjectNames(t *testing.T) {
	s, f := newTestGCS(t, "freshpost/")
	if err := s.Save(context.Background(), "notified", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.objects["freshpost/notified.json"]; !ok {
		t.Errorf("objects = %v, want freshpost/notified.json", f.objects)
	}
}

func TestNewGCSStore_Validation(t *testing.T) {
	if _, err := NewGCSStore(nil, "b", ""); err == nil {
		t.Error("expected error for nil client")
	}
}
