package adapter

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os/exec"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRenderedExtract_ReusesFirstPageSelector(t *testing.T) {
	page1 := `<ul><li class="job"><a href="/j/1">Product Manager</a></li><li class="job"><a href="/j/2">Program Manager</a></li></ul>`
	// Page two would match the first selector too, but must be read with the one chosen on page one.
	page2 := `<div class="row"><a href="/j/9">Ignored</a></div><ul><li class="job"><a href="/j/3">Project Manager</a></li></ul>`

	chain := SelectorChain{Selectors: []string{"div.row", "li.job"}, MaxItems: 30}
	a := NewRenderedAdapter("Acme", "https://acme.example/jobs", chain, RenderedOptions{}, quietLogger())
	base, _ := url.Parse("https://acme.example/jobs")

	got, err := a.extract([]string{page1, page2}, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %+v", len(got), got)
	}
	if got[2].Link != "https://acme.example/j/3" {
		t.Errorf("Link = %q", got[2].Link)
	}
}

func TestRenderedExtract_CapsAcrossPages(t *testing.T) {
	page := `<li class="job">Product Manager A</li><li class="job">Product Manager B</li>`
	chain := SelectorChain{Selectors: []string{"li.job"}, MaxItems: 3}
	a := NewRenderedAdapter("Acme", "https://acme.example/jobs", chain, RenderedOptions{}, quietLogger())

	got, err := a.extract([]string{page, page, page}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 candidates, got %d", len(got))
	}
}

func chromeAvailable() bool {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func TestRenderedFetchCandidates_Browser(t *testing.T) {
	if testing.Short() || !chromeAvailable() {
		t.Skip("headless chrome not available")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><ul id="list"></ul>
<button id="more" onclick="add('Program Manager', '/j/2')">Load More</button>
<script>
function add(t, h) { const li = document.createElement('li'); li.className = 'job';
  li.innerHTML = '<a href="' + h + '">' + t + '</a>'; document.getElementById('list').appendChild(li); }
add('Product Manager', '/j/1');
</script></body></html>`))
	}))
	defer srv.Close()

	a := NewRenderedAdapter("Acme", srv.URL, SelectorChain{Selectors: []string{"li.job"}, MaxItems: 30}, RenderedOptions{
		SettleDelay:    100 * time.Millisecond,
		LoadMoreClicks: 1,
		Scrolls:        1,
		Timeout:        20 * time.Second,
	}, quietLogger())

	got, err := a.FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates after load more, got %d", len(got))
	}
	if got[1].Link != srv.URL+"/j/2" {
		t.Errorf("Link = %q", got[1].Link)
	}
}
