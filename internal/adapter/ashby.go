package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/amishk599/freshpost/internal/model"
)

const ashbyBaseURL = "https://api.ashbyhq.com/posting-api/job-board"

type ashbyJob struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Location    string `json:"location"`
	JobURL      string `json:"jobUrl"`
	PublishedAt string `json:"publishedAt"`
	IsListed    bool   `json:"isListed"`
}

type ashbyResponse struct {
	Jobs []ashbyJob `json:"jobs"`
}

// AshbyAdapter fetches postings from the Ashby public job board API.
type AshbyAdapter struct {
	source     string
	boardToken string
	baseURL    string
	userAgent  string
	client     *http.Client
}

// NewAshbyAdapter creates an adapter for an Ashby job board.
func NewAshbyAdapter(source, boardToken, baseURL string, client *http.Client, userAgent string) *AshbyAdapter {
	if baseURL == "" {
		baseURL = ashbyBaseURL
	}
	return &AshbyAdapter{
		source:     source,
		boardToken: boardToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		client:     client,
	}
}

// FetchCandidates retrieves the listed jobs of the board. Unlisted jobs are skipped.
func (a *AshbyAdapter) FetchCandidates(ctx context.Context) ([]model.RawCandidate, error) {
	url := fmt.Sprintf("%s/%s", a.baseURL, a.boardToken)

	var resp ashbyResponse
	if err := getJSON(ctx, a.client, url, a.userAgent, "ashby fetch for "+a.boardToken, &resp); err != nil {
		return nil, err
	}

	out := make([]model.RawCandidate, 0, len(resp.Jobs))
	for _, aj := range resp.Jobs {
		if !aj.IsListed {
			continue
		}
		id := aj.ID
		if id == "" {
			id = aj.JobURL
		}
		out = append(out, model.RawCandidate{
			Source:     a.source,
			Text:       extractText(aj.Title),
			Link:       aj.JobURL,
			ExternalID: id,
			PostedAt:   parseTime(aj.PublishedAt),
			Location:   aj.Location,
		})
	}
	return out, nil
}
