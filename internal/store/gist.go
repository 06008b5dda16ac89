package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/amishk599/freshpost/internal/model"
)

const (
	defaultGistAPI  = "https://api.github.com"
	gistDescription = "freshpost state"
)

type gistFile struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
	RawURL    string `json:"raw_url,omitempty"`
}

type gist struct {
	ID          string              `json:"id"`
	Description string              `json:"description"`
	Files       map[string]gistFile `json:"files"`
}

// GistStore keeps documents as <name>.json files of one private GitHub gist.
// The gist is found by id, else by description or a history.json file among
// the token owner's gists, and created on first save.
type GistStore struct {
	apiURL string
	token  string
	client *http.Client

	mu sync.Mutex
	id string
}

// NewGistStore creates a gist-backed store. id may be empty.
func NewGistStore(token, id, apiURL string, client *http.Client) (*GistStore, error) {
	if token == "" {
		return nil, errors.New("gist token is required")
	}
	if apiURL == "" {
		apiURL = defaultGistAPI
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GistStore{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		client: client,
		id:     id,
	}, nil
}

func fileName(name string) string { return name + ".json" }

// Load returns the content of <name>.json, or model.ErrNotFound when the gist
// or the file does not exist.
func (s *GistStore) Load(ctx context.Context, name string) ([]byte, error) {
	g, err := s.find(ctx)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, model.ErrNotFound
	}
	f, ok := g.Files[fileName(name)]
	if !ok {
		return nil, model.ErrNotFound
	}
	if f.Truncated && f.RawURL != "" {
		return s.raw(ctx, f.RawURL)
	}
	return []byte(f.Content), nil
}

// Save writes <name>.json, creating the gist when none exists yet.
func (s *GistStore) Save(ctx context.Context, name string, data []byte) error {
	g, err := s.find(ctx)
	if err != nil {
		return err
	}
	files := map[string]gistFile{fileName(name): {Content: string(data)}}

	if g == nil {
		body := map[string]any{
			"description": gistDescription,
			"public":      false,
			"files":       files,
		}
		var created gist
		if err := s.do(ctx, http.MethodPost, s.apiURL+"/gists", body, &created); err != nil {
			return fmt.Errorf("create gist: %w", err)
		}
		s.mu.Lock()
		s.id = created.ID
		s.mu.Unlock()
		return nil
	}

	if err := s.do(ctx, http.MethodPatch, s.apiURL+"/gists/"+g.ID, map[string]any{"files": files}, nil); err != nil {
		return fmt.Errorf("update gist %s: %w", g.ID, err)
	}
	return nil
}

// find returns the state gist, or nil when it does not exist.
func (s *GistStore) find(ctx context.Context) (*gist, error) {
	s.mu.Lock()
	id := s.id
	s.mu.Unlock()

	if id != "" {
		var g gist
		err := s.do(ctx, http.MethodGet, s.apiURL+"/gists/"+id, nil, &g)
		var httpErr *model.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get gist %s: %w", id, err)
		}
		return &g, nil
	}

	var list []gist
	if err := s.do(ctx, http.MethodGet, s.apiURL+"/gists?per_page=100", nil, &list); err != nil {
		return nil, fmt.Errorf("list gists: %w", err)
	}
	for _, g := range list {
		if _, ok := g.Files[fileName("history")]; ok || g.Description == gistDescription {
			s.mu.Lock()
			s.id = g.ID
			s.mu.Unlock()
			// The listing omits file content.
			return s.find(ctx)
		}
	}
	return nil, nil
}

func (s *GistStore) raw(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch raw gist file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{StatusCode: resp.StatusCode, Err: errors.New("fetch raw gist file")}
	}
	return io.ReadAll(resp.Body)
}

func (s *GistStore) do(ctx context.Context, method, url string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s %s: %s", method, url, strings.TrimSpace(string(msg))),
		}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
