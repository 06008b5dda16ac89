package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/freshpost/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

const (
	slackMaxBlocks  = 50
	slackMaxSection = 3000
)

// SlackNotifier posts the digest to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts one Block Kit message per digest.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Notify sends the whole digest as a single message. A 429 is retried once
// after Retry-After.
func (s *SlackNotifier) Notify(ctx context.Context, d model.Digest) error {
	if d.Total() == 0 {
		return nil
	}

	body, err := json.Marshal(buildPayload(d))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(ctx, body)
	if err != nil {
		return fmt.Errorf("%w: post to slack: %w", model.ErrDeliveryFailure, err)
	}
	if status == http.StatusTooManyRequests {
		s.logger.Warn("slack rate limited, retrying", "retry_after", retryAfter)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", model.ErrDeliveryFailure, ctx.Err())
		case <-time.After(retryAfter):
		}
		status, _, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("%w: post to slack (retry): %w", model.ErrDeliveryFailure, err)
		}
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: slack returned %d", model.ErrDeliveryFailure, status)
	}

	s.logger.Info("slack digest sent", "postings", d.Total(), "sources", len(d.Groups))
	return nil
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
	if secs <= 0 {
		secs = 1
	}
	return resp.StatusCode, time.Duration(secs) * time.Second, nil
}

// Block Kit payload types.

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func mrkdwnEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func postingLine(p model.Posting) string {
	title := mrkdwnEscape(p.Title)
	line := "• " + title
	if p.URL != "" {
		line = fmt.Sprintf("• <%s|%s>", p.URL, title)
	}
	if p.Location != "" {
		line += " · " + mrkdwnEscape(p.Location)
	}
	return line
}

// groupSections renders one group as sections no longer than Slack's limit.
func groupSections(g model.DigestGroup) []string {
	var sections []string
	cur := fmt.Sprintf("*%s* (%d)", mrkdwnEscape(g.Source), len(g.Postings))
	for _, p := range g.Postings {
		line := postingLine(p)
		if len(cur)+1+len(line) > slackMaxSection {
			sections = append(sections, cur)
			cur = line
			continue
		}
		cur += "\n" + line
	}
	return append(sections, cur)
}

func buildPayload(d model.Digest) slackPayload {
	subject := Subject(d)
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "🚀 " + subject},
		},
		{
			Type:     "context",
			Elements: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("%d sources · %s", len(d.Groups), d.GeneratedAt.UTC().Format(time.RFC1123))}},
		},
	}

	for i, g := range d.Groups {
		sections := groupSections(g)
		// Room for the sections, a divider and a trailing notice.
		if len(blocks)+len(sections)+2 > slackMaxBlocks {
			hidden := 0
			for _, rest := range d.Groups[i:] {
				hidden += len(rest.Postings)
			}
			blocks = append(blocks, slackBlock{
				Type:     "context",
				Elements: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("…and %d more postings not shown", hidden)}},
			})
			break
		}
		blocks = append(blocks, slackBlock{Type: "divider"})
		for _, text := range sections {
			blocks = append(blocks, slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: text}})
		}
	}

	return slackPayload{Text: subject, Blocks: blocks}
}
