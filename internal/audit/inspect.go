package audit

import (
	"context"

	"github.com/amishk599/freshpost/internal/filter"
	"github.com/amishk599/freshpost/internal/identity"
	"github.com/amishk599/freshpost/internal/model"
	"github.com/amishk599/freshpost/internal/poller"
)

// ReasonIrrelevant marks a candidate rejected by the keyword and location filter.
const ReasonIrrelevant filter.Reason = "irrelevant"

// Row is one raw candidate together with what the pipeline decided about it.
type Row struct {
	Candidate model.RawCandidate
	Reason    filter.Reason
	Key       string // canonical key the candidate would get
}

// Accepted reports whether the candidate survives filtering.
func (r Row) Accepted() bool {
	return r.Reason == filter.ReasonAccepted
}

// Inspection is the audit view of one source.
type Inspection struct {
	Source   string
	Adapter  string
	Rows     []Row
	Postings []model.Posting
	Err      error
}

// Inspect fetches a source's raw candidates and annotates each with the
// rule that accepted or rejected it. Fetch errors are kept alongside any
// partial candidates.
func Inspect(ctx context.Context, p *poller.SourcePoller, relevance model.PostingFilter, classifier *filter.NoiseClassifier) Inspection {
	raw, adapterName, err := p.Candidates(ctx)
	ins := Inspection{Source: p.Name, Adapter: adapterName, Err: err}

	for _, c := range raw {
		row := Row{
			Candidate: c,
			Reason:    filter.ReasonAccepted,
			Key:       identity.ResolveKey(p.Name, c.Text, c.Link, c.ExternalID),
		}
		switch {
		case relevance != nil && !relevance.Match(c):
			row.Reason = ReasonIrrelevant
		case classifier != nil:
			row.Reason = classifier.Classify(c.Text).Reason
		}
		ins.Rows = append(ins.Rows, row)
	}
	ins.Postings, _ = p.Normalize(raw)
	return ins
}

// Counts returns how many rows were rejected per reason.
func (ins Inspection) Counts() map[filter.Reason]int {
	out := make(map[filter.Reason]int)
	for _, r := range ins.Rows {
		out[r.Reason]++
	}
	return out
}
