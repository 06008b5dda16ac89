package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/amishk599/freshpost/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

type leverCategories struct {
	Team         string   `json:"team"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

type leverJob struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	Categories leverCategories `json:"categories"`
	CreatedAt  int64           `json:"createdAt"`
	HostedURL  string          `json:"hostedUrl"`
}

// LeverAdapter fetches postings from the Lever public postings API.
type LeverAdapter struct {
	source      string
	companySlug string
	baseURL     string
	userAgent   string
	client      *http.Client
}

// NewLeverAdapter creates an adapter for a Lever board.
func NewLeverAdapter(source, companySlug, baseURL string, client *http.Client, userAgent string) *LeverAdapter {
	if baseURL == "" {
		baseURL = leverBaseURL
	}
	return &LeverAdapter{
		source:      source,
		companySlug: companySlug,
		baseURL:     strings.TrimRight(baseURL, "/"),
		userAgent:   userAgent,
		client:      client,
	}
}

// FetchCandidates retrieves every posting of the company.
func (a *LeverAdapter) FetchCandidates(ctx context.Context) ([]model.RawCandidate, error) {
	url := fmt.Sprintf("%s/%s?mode=json", a.baseURL, a.companySlug)

	var jobs []leverJob
	if err := getJSON(ctx, a.client, url, a.userAgent, "lever fetch for "+a.companySlug, &jobs); err != nil {
		return nil, err
	}

	out := make([]model.RawCandidate, 0, len(jobs))
	for _, lj := range jobs {
		location := lj.Categories.Location
		if len(lj.Categories.AllLocations) > 0 {
			location = strings.Join(lj.Categories.AllLocations, ", ")
		}

		// createdAt is Unix milliseconds
		var postedAt *time.Time
		if lj.CreatedAt > 0 {
			t := time.UnixMilli(lj.CreatedAt).UTC()
			postedAt = &t
		}

		out = append(out, model.RawCandidate{
			Source:     a.source,
			Text:       extractText(lj.Text),
			Link:       lj.HostedURL,
			ExternalID: lj.ID,
			PostedAt:   postedAt,
			Location:   location,
		})
	}
	return out, nil
}
