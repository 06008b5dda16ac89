package adapter

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/freshpost/internal/model"
)

const (
	microsoftBaseURL  = "https://apply.careers.microsoft.com"
	microsoftPageSize = 10
	microsoftMaxPages = 20
)

type microsoftPosition struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Locations   []string `json:"locations"`
	PostedTs    int64    `json:"postedTs"`
	PositionURL string   `json:"positionUrl"`
}

type microsoftSearchResponse struct {
	Data struct {
		Positions []microsoftPosition `json:"positions"`
		Count     int                 `json:"count"`
	} `json:"data"`
}

// MicrosoftAdapter fetches postings from the Microsoft careers search API.
type MicrosoftAdapter struct {
	source    string
	baseURL   string
	query     string
	location  string
	horizon   time.Duration
	userAgent string
	client    *http.Client
	now       func() time.Time
}

// NewMicrosoftAdapter creates an adapter for Microsoft careers. An empty query
// searches for product, program and project roles in the United States.
func NewMicrosoftAdapter(source, baseURL, query string, horizon time.Duration, client *http.Client, userAgent string) *MicrosoftAdapter {
	if baseURL == "" {
		baseURL = microsoftBaseURL
	}
	if query == "" {
		query = `"product" OR "program" OR "project"`
	}
	return &MicrosoftAdapter{
		source:    source,
		baseURL:   strings.TrimRight(baseURL, "/"),
		query:     query,
		location:  "United States",
		horizon:   horizon,
		userAgent: userAgent,
		client:    client,
		now:       time.Now,
	}
}

// FetchCandidates paginates the search API sorted by timestamp, stopping once
// a whole page is older than the horizon.
func (a *MicrosoftAdapter) FetchCandidates(ctx context.Context) ([]model.RawCandidate, error) {
	now := a.now().UTC()
	var out []model.RawCandidate

	for page, start := 0, 0; page < microsoftMaxPages; page, start = page+1, start+microsoftPageSize {
		positions, count, err := a.fetchPage(ctx, start)
		if err != nil {
			if len(out) > 0 {
				return out, err
			}
			return nil, err
		}

		anyFresh := false
		for _, p := range positions {
			c := a.candidateFromPosition(p)
			if c.PostedAt != nil && (a.horizon <= 0 || now.Sub(*c.PostedAt) <= a.horizon) {
				anyFresh = true
			}
			out = append(out, c)
		}

		if !anyFresh || start+microsoftPageSize >= count {
			break
		}
	}
	return out, nil
}

func (a *MicrosoftAdapter) fetchPage(ctx context.Context, start int) ([]microsoftPosition, int, error) {
	u, err := url.Parse(a.baseURL + "/api/pcsx/search")
	if err != nil {
		return nil, 0, err
	}
	q := u.Query()
	q.Set("domain", "microsoft.com")
	q.Set("query", a.query)
	q.Set("location", a.location)
	q.Set("start", strconv.Itoa(start))
	q.Set("sort_by", "timestamp")
	q.Set("filter_include_remote", "1")
	u.RawQuery = q.Encode()

	var resp microsoftSearchResponse
	label := "microsoft fetch page (start=" + strconv.Itoa(start) + ")"
	if err := getJSON(ctx, a.client, u.String(), a.userAgent, label, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Data.Positions, resp.Data.Count, nil
}

func (a *MicrosoftAdapter) candidateFromPosition(p microsoftPosition) model.RawCandidate {
	c := model.RawCandidate{
		Source:     a.source,
		Text:       extractText(p.Name),
		Link:       a.baseURL + p.PositionURL,
		ExternalID: strconv.FormatInt(p.ID, 10),
	}
	if len(p.Locations) > 0 {
		c.Location = p.Locations[0]
	}
	if p.PostedTs > 0 {
		t := time.Unix(p.PostedTs, 0).UTC()
		c.PostedAt = &t
	}
	return c
}
