package coordinator

import (
	"time"
)

// SourceOutcome summarizes one source within a run.
type SourceOutcome struct {
	Source   string
	Adapter  string
	Raw      int
	Dropped  int
	Postings int
	Novel    int
	Err      error
}

// Report describes a finished run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Phases     []Phase
	Sources    []SourceOutcome

	Discovered      int
	Stale           int
	AlreadyNotified int
	Novel           int
	Pruned          int
	Delivered       bool

	// Warnings collects non-fatal failures: failed sources, degraded
	// persistence and undelivered notifications.
	Warnings []error
}

func (r *Report) enter(p Phase) { r.Phases = append(r.Phases, p) }

func (r *Report) warn(err error) { r.Warnings = append(r.Warnings, err) }

// FailedSources returns the names of sources that ended in failure.
func (r *Report) FailedSources() []string {
	var out []string
	for _, o := range r.Sources {
		if o.Err != nil {
			out = append(out, o.Source)
		}
	}
	return out
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
