package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/amishk599/freshpost/internal/model"
)

const gemBaseURL = "https://api.gem.com/job_board/v0"

type gemJob struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Location       gemLocation `json:"location"`
	AbsoluteURL    string      `json:"absolute_url"`
	FirstPublished string      `json:"first_published_at"`
}

type gemLocation struct {
	Name string `json:"name"`
}

// GemAdapter fetches postings from the Gem public job board API.
type GemAdapter struct {
	source     string
	boardToken string
	baseURL    string
	userAgent  string
	client     *http.Client
}

// NewGemAdapter creates an adapter for a Gem job board.
func NewGemAdapter(source, boardToken, baseURL string, client *http.Client, userAgent string) *GemAdapter {
	if baseURL == "" {
		baseURL = gemBaseURL
	}
	return &GemAdapter{
		source:     source,
		boardToken: boardToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		client:     client,
	}
}

// FetchCandidates retrieves every job post on the board.
func (a *GemAdapter) FetchCandidates(ctx context.Context) ([]model.RawCandidate, error) {
	url := fmt.Sprintf("%s/%s/job_posts/", a.baseURL, a.boardToken)

	var jobs []gemJob
	if err := getJSON(ctx, a.client, url, a.userAgent, "gem fetch for "+a.boardToken, &jobs); err != nil {
		return nil, err
	}

	out := make([]model.RawCandidate, 0, len(jobs))
	for _, gj := range jobs {
		c := model.RawCandidate{
			Source:     a.source,
			Text:       extractText(gj.Title),
			Link:       gj.AbsoluteURL,
			ExternalID: gj.ID,
			Location:   gj.Location.Name,
			PostedAt:   parseTime(gj.FirstPublished),
		}
		out = append(out, c)
	}
	return out, nil
}
