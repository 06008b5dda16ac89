package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/amishk599/freshpost/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID             int64              `json:"id"`
	Title          string             `json:"title"`
	Location       greenhouseLocation `json:"location"`
	AbsoluteURL    string             `json:"absolute_url"`
	FirstPublished string             `json:"first_published"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseAdapter fetches postings from the Greenhouse public boards API.
type GreenhouseAdapter struct {
	source     string
	boardToken string
	baseURL    string
	userAgent  string
	client     *http.Client
}

// NewGreenhouseAdapter creates an adapter for a Greenhouse board. An empty
// baseURL selects the public API.
func NewGreenhouseAdapter(source, boardToken, baseURL string, client *http.Client, userAgent string) *GreenhouseAdapter {
	if baseURL == "" {
		baseURL = greenhouseBaseURL
	}
	return &GreenhouseAdapter{
		source:     source,
		boardToken: boardToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		client:     client,
	}
}

// FetchCandidates retrieves every job on the board.
func (a *GreenhouseAdapter) FetchCandidates(ctx context.Context) ([]model.RawCandidate, error) {
	url := fmt.Sprintf("%s/%s/jobs", a.baseURL, a.boardToken)

	var resp greenhouseResponse
	if err := getJSON(ctx, a.client, url, a.userAgent, "greenhouse fetch for "+a.boardToken, &resp); err != nil {
		return nil, err
	}

	out := make([]model.RawCandidate, 0, len(resp.Jobs))
	for _, gj := range resp.Jobs {
		c := model.RawCandidate{
			Source:     a.source,
			Text:       extractText(gj.Title),
			Link:       gj.AbsoluteURL,
			ExternalID: strconv.FormatInt(gj.ID, 10),
			Location:   gj.Location.Name,
		}
		// updated_at moves on every edit, so it never stands in for the posting time.
		c.PostedAt = parseTime(gj.FirstPublished)
		out = append(out, c)
	}
	return out, nil
}
