package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/freshpost/internal/model"
)

const (
	workdayPageSize = 20
	workdayMaxPages = 25
)

type workdayListingResponse struct {
	Total       int              `json:"total"`
	JobPostings []workdayListing `json:"jobPostings"`
}

type workdayListing struct {
	Title         string   `json:"title"`
	ExternalPath  string   `json:"externalPath"`
	LocationsText string   `json:"locationsText"`
	PostedOn      string   `json:"postedOn"`
	BulletFields  []string `json:"bulletFields"`
}

type workdayListingRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

// WorkdayAdapter fetches postings from a Workday career site's CXS listing API.
// baseURL is the site's API root, e.g.
// https://nvidia.wd5.myworkdayjobs.com/wday/cxs/nvidia/NVIDIAExternalCareerSite.
type WorkdayAdapter struct {
	source    string
	baseURL   string
	query     string
	horizon   time.Duration // stop paginating once a page ends older than this; zero disables
	userAgent string
	client    *http.Client
	now       func() time.Time
}

// NewWorkdayAdapter creates an adapter for a Workday career site.
func NewWorkdayAdapter(source, baseURL, query string, horizon time.Duration, client *http.Client, userAgent string) *WorkdayAdapter {
	return &WorkdayAdapter{
		source:    source,
		baseURL:   strings.TrimRight(baseURL, "/"),
		query:     query,
		horizon:   horizon,
		userAgent: userAgent,
		client:    client,
		now:       time.Now,
	}
}

// FetchCandidates paginates the listing endpoint. Listings are returned newest
// first, so pagination stops at the first page whose last listing is older than
// the horizon or carries no usable date.
func (a *WorkdayAdapter) FetchCandidates(ctx context.Context) ([]model.RawCandidate, error) {
	now := a.now().UTC()
	var out []model.RawCandidate

	for page, offset := 0, 0; page < workdayMaxPages; page, offset = page+1, offset+workdayPageSize {
		listResp, err := a.fetchPage(ctx, offset)
		if err != nil {
			if len(out) > 0 {
				return out, err
			}
			return nil, err
		}

		for _, l := range listResp.JobPostings {
			out = append(out, a.candidateFromListing(l, now))
		}

		if n := len(listResp.JobPostings); n == 0 || a.pastHorizon(listResp.JobPostings[n-1], now) {
			break
		}
		if offset+workdayPageSize >= listResp.Total {
			break
		}
	}
	return out, nil
}

func (a *WorkdayAdapter) fetchPage(ctx context.Context, offset int) (*workdayListingResponse, error) {
	body, err := json.Marshal(workdayListingRequest{
		AppliedFacets: map[string]any{},
		Limit:         workdayPageSize,
		Offset:        offset,
		SearchText:    a.query,
	})
	if err != nil {
		return nil, fmt.Errorf("workday listing marshal for %s: %w", a.source, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("workday listing request for %s: %w", a.source, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp workdayListingResponse
	if err := doJSON(a.client, req, a.userAgent, "workday listing fetch for "+a.source, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *WorkdayAdapter) pastHorizon(l workdayListing, now time.Time) bool {
	if a.horizon <= 0 {
		return false
	}
	posted := parsePostedOn(l.PostedOn, now)
	return posted == nil || now.Sub(*posted) > a.horizon
}

func (a *WorkdayAdapter) candidateFromListing(l workdayListing, now time.Time) model.RawCandidate {
	id := ""
	if len(l.BulletFields) > 0 {
		id = l.BulletFields[0] // requisition id, e.g. "JR1991863"
	}
	if id == "" {
		id = l.ExternalPath
	}
	return model.RawCandidate{
		Source:     a.source,
		Text:       extractText(l.Title),
		Link:       workdayPublicURL(a.baseURL, l.ExternalPath),
		ExternalID: id,
		PostedAt:   parsePostedOn(l.PostedOn, now),
		Location:   l.LocationsText,
	}
}

var cxsPath = regexp.MustCompile(`^/wday/cxs/[^/]+/([^/]+)`)

// workdayPublicURL maps a listing's externalPath to the human-facing job page.
func workdayPublicURL(baseURL, externalPath string) string {
	if externalPath == "" {
		return ""
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL + externalPath
	}
	if m := cxsPath.FindStringSubmatch(u.Path); m != nil {
		return u.Scheme + "://" + u.Host + "/" + m[1] + externalPath
	}
	return baseURL + externalPath
}

var daysAgoRegex = regexp.MustCompile(`(?i)^Posted (\d+)\+? Days? Ago$`)

// parsePostedOn converts a Workday relative date string to an approximate
// timestamp at midnight UTC. "Posted 30+ Days Ago" and unknown values yield nil.
func parsePostedOn(postedOn string, now time.Time) *time.Time {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch strings.ToLower(strings.TrimSpace(postedOn)) {
	case "posted today":
		return &today
	case "posted yesterday":
		t := today.AddDate(0, 0, -1)
		return &t
	}

	if strings.Contains(postedOn, "+") {
		return nil
	}
	if n, ok := parseDaysAgo(postedOn); ok {
		t := today.AddDate(0, 0, -n)
		return &t
	}
	return nil
}

func parseDaysAgo(s string) (int, bool) {
	matches := daysAgoRegex.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return 0, false
	}
	n, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
