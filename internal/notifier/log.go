package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/freshpost/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes the digest to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each posting via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs a summary line and one line per posting.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(_ context.Context, d model.Digest) error {
	if d.Total() == 0 {
		return nil
	}
	n.logger.Info(Subject(d), "sources", len(d.Groups))
	for _, g := range d.Groups {
		for _, p := range g.Postings {
			args := []any{"source", p.Source, "title", p.Title, "key", p.Key, "url", p.URL}
			if p.Location != "" {
				args = append(args, "location", p.Location)
			}
			if p.PostedAt != nil {
				args = append(args, "posted_at", *p.PostedAt)
			}
			n.logger.Info("new posting", args...)
		}
	}
	return nil
}
