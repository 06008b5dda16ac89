package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amishk599/freshpost/internal/notifier"
	"github.com/amishk599/freshpost/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfig(t *testing.T, dir, boardURL string) string {
	t.Helper()
	content := fmt.Sprintf(`
rate_limit:
  min_delay: 1ms
source_delay: 1ms
state:
  backend: memory
notification:
  type: ${FRESHPOST_TEST_NOTIFY}
sources:
  - name: Acme
    enabled: true
    keywords: [manager]
    primary:
      kind: api
      api: greenhouse
      board_token: acme
      url: %s
  - name: Beta
    enabled: true
    primary:
      kind: static
      url: http://127.0.0.1:1/jobs
      selectors: ["li.job"]
`, boardURL)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_ReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "https://boards.example")
	dotenv := filepath.Join(dir, ".env")
	if err := os.WriteFile(dotenv, []byte("FRESHPOST_TEST_NOTIFY=log\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("FRESHPOST_TEST_NOTIFY") })

	envFile = dotenv
	defer func() { envFile = ".env" }()

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Notification.Type != "log" {
		t.Errorf("notification type = %q, want value from the env file", cfg.Notification.Type)
	}
	if _, ok := setupNotifier(cfg, newHTTPClient(), discardLogger()).(*notifier.LogNotifier); !ok {
		t.Error("expected the log notifier")
	}
	if setupRecorder(cfg, newHTTPClient()) != nil {
		t.Error("no pushgateway configured, expected no recorder")
	}
}

func TestLoadConfig_MissingEnvFileIgnored(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FRESHPOST_TEST_NOTIFY", "log")
	envFile = filepath.Join(dir, "absent.env")
	defer func() { envFile = ".env" }()

	if _, err := loadConfig(writeConfig(t, dir, "https://boards.example")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func TestRunOnce_EndToEnd(t *testing.T) {
	posted := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/acme/jobs" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"jobs":[
			{"id":1,"title":"Senior Product Manager","absolute_url":"https://acme.example/jobs/1","location":{"name":"New York"},"first_published":%q},
			{"id":2,"title":"Staff Software Engineer","absolute_url":"https://acme.example/jobs/2","location":{"name":"Remote"},"first_published":%q}
		]}`, posted, posted)
	}))
	defer srv.Close()

	t.Setenv("FRESHPOST_TEST_NOTIFY", "log")
	envFile = ""
	defer func() { envFile = ".env" }()

	cfg, err := loadConfig(writeConfig(t, t.TempDir(), srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	logger := discardLogger()
	ctx := context.Background()
	st, err := store.Open(ctx, cfg.State, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	pollers := buildPollers(cfg, newHTTPClient(), logger)
	if len(pollers) != 2 {
		t.Fatalf("expected 2 pollers, got %d", len(pollers))
	}
	c := newCoordinator(cfg, pollers, st, setupNotifier(cfg, newHTTPClient(), logger), nil, logger)

	first, err := c.RunOnce(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Novel != 1 || !first.Delivered {
		t.Errorf("first run: novel %d, delivered %v", first.Novel, first.Delivered)
	}
	if failed := first.FailedSources(); len(failed) != 1 || failed[0] != "Beta" {
		t.Errorf("expected only Beta to fail, got %v", failed)
	}

	second, err := c.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Novel != 0 || second.AlreadyNotified != 1 {
		t.Errorf("second run: novel %d, already notified %d", second.Novel, second.AlreadyNotified)
	}
}
