// Package coordinator runs one collect, evaluate, notify and persist cycle and
// owns the rule that a posting is marked notified only after confirmed delivery.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/freshpost/internal/model"
	"github.com/amishk599/freshpost/internal/notifier"
	"github.com/amishk599/freshpost/internal/novelty"
	"github.com/amishk599/freshpost/internal/poller"
	"github.com/amishk599/freshpost/internal/state"
)

// Phase is a step of a run.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseCollecting Phase = "collecting"
	PhaseEvaluating Phase = "evaluating"
	PhaseNotifying  Phase = "notifying"
	PhasePersisting Phase = "persisting"
	PhaseDone       Phase = "done"
)

const persistTimeout = 30 * time.Second

// Recorder receives the report of every finished run.
type Recorder interface {
	Record(ctx context.Context, r *Report) error
}

// Options holds the novelty parameters of a run.
type Options struct {
	FreshnessWindow  time.Duration
	NotifiedCap      int
	HistoryRetention time.Duration
	SourceDelay      time.Duration
}

// Coordinator wires pollers, the state store and the notifier together.
type Coordinator struct {
	pollers  []*poller.SourcePoller
	store    model.StateStore
	notifier model.Notifier
	recorder Recorder
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a coordinator. recorder may be nil.
func New(pollers []*poller.SourcePoller, store model.StateStore, n model.Notifier, recorder Recorder, opts Options, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		pollers:  pollers,
		store:    store,
		notifier: n,
		recorder: recorder,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// RunOnce executes a single run. Source, persistence and delivery failures are
// reported in the Report; the error is only non-nil when there is nothing to run.
func (c *Coordinator) RunOnce(ctx context.Context) (*Report, error) {
	if len(c.pollers) == 0 {
		return nil, model.ErrNoSources
	}

	now := c.now().UTC()
	r := &Report{RunID: uuid.NewString(), StartedAt: now}
	logger := c.logger.With("run_id", r.RunID)
	r.enter(PhaseIdle)

	st, err := state.Load(ctx, c.store, logger)
	if err != nil {
		r.warn(err)
	}

	r.enter(PhaseCollecting)
	catalog := poller.CollectAll(ctx, c.pollers, c.opts.SourceDelay, logger)

	r.enter(PhaseEvaluating)
	res := novelty.ComputeNovel(catalog, st, now, c.opts.FreshnessWindow)
	r.Discovered, r.Stale, r.AlreadyNotified = res.Discovered, res.Stale, res.Reported
	r.Novel = len(res.Novel)
	r.Sources = outcomes(catalog, res.Novel)
	for _, o := range r.Sources {
		if o.Err != nil {
			r.warn(o.Err)
		}
	}
	logger.Info("evaluated catalog",
		"postings", len(catalog.Postings()),
		"discovered", r.Discovered,
		"stale", r.Stale,
		"already_notified", r.AlreadyNotified,
		"novel", r.Novel,
		"duplicates", len(res.Suppressed)+len(res.Covered),
	)

	st.MarkNotified(res.Covered, c.opts.NotifiedCap)
	if len(res.Novel) > 0 {
		r.enter(PhaseNotifying)
		digest := notifier.BuildDigest(res.Novel, now)
		if err := c.notifier.Notify(ctx, digest); err != nil {
			logger.Warn("notification not delivered, postings stay pending", "error", err)
			r.warn(fmt.Errorf("%w: %w", model.ErrDeliveryFailure, err))
		} else {
			st.MarkNotified(slices.Concat(res.Novel, res.Suppressed), c.opts.NotifiedCap)
			r.Delivered = true
		}
	} else {
		logger.Info("nothing new to report")
	}

	r.enter(PhasePersisting)
	if c.opts.HistoryRetention > 0 {
		r.Pruned = st.Prune(catalog, now, c.opts.HistoryRetention)
	}
	// State is written even when the run itself was cancelled.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := state.Save(saveCtx, c.store, st); err != nil {
		logger.Error("state not saved", "phase", PhasePersisting, "error", err)
		r.warn(err)
	}

	r.FinishedAt = c.now().UTC()
	r.enter(PhaseDone)

	if c.recorder != nil {
		if err := c.recorder.Record(saveCtx, r); err != nil {
			logger.Warn("metrics push failed", "error", err)
			r.warn(err)
		}
	}

	logger.Info("run complete",
		"duration", r.Duration().Round(time.Millisecond).String(),
		"sources", len(r.Sources),
		"failed_sources", len(r.FailedSources()),
		"novel", r.Novel,
		"delivered", r.Delivered,
		"pruned", r.Pruned,
		"warnings", len(r.Warnings),
	)
	return r, nil
}

func outcomes(catalog model.Catalog, novel []model.Posting) []SourceOutcome {
	perSource := make(map[string]int)
	for _, p := range novel {
		perSource[p.Source]++
	}
	out := make([]SourceOutcome, 0, len(catalog))
	for _, sr := range catalog {
		out = append(out, SourceOutcome{
			Source:   sr.Source,
			Adapter:  sr.Adapter,
			Raw:      sr.Raw,
			Dropped:  sr.Dropped,
			Postings: len(sr.Postings),
			Novel:    perSource[sr.Source],
			Err:      sr.Err,
		})
	}
	return out
}
