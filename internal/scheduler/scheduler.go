// Package scheduler repeats coordinator runs on a fixed interval or a cron
// schedule until its context is cancelled.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amishk599/freshpost/internal/coordinator"
)

// Runner executes one run.
type Runner interface {
	RunOnce(ctx context.Context) (*coordinator.Report, error)
}

// Scheduler owns the daemon loop: one immediate run, then one per tick.
type Scheduler struct {
	runner   Runner
	schedule cron.Schedule
	logger   *slog.Logger
	now      func() time.Time
}

// NewScheduler creates a scheduler. A non-empty cronExpr (standard five-field
// syntax) takes precedence over interval.
func NewScheduler(runner Runner, interval time.Duration, cronExpr string, logger *slog.Logger) (*Scheduler, error) {
	var schedule cron.Schedule
	if cronExpr != "" {
		var err error
		schedule, err = cron.ParseStandard(cronExpr)
		if err != nil {
			return nil, fmt.Errorf("parse schedule.cron %q: %w", cronExpr, err)
		}
	} else {
		if interval <= 0 {
			return nil, fmt.Errorf("interval must be positive, got %v", interval)
		}
		schedule = cron.Every(interval)
	}
	return &Scheduler{
		runner:   runner,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Next returns the time of the run after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run starts the loop. It runs one immediate cycle, then waits for each next
// scheduled time. It returns nil when ctx is cancelled (graceful shutdown).
// A run in progress is allowed to persist its state before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", "next_run", "now")

	for {
		s.runOnce(ctx)

		next := s.schedule.Next(s.now())
		wait := time.Until(next)
		s.logger.Info("next run scheduled",
			"next_run", next.Format("2006-01-02 15:04:05"),
			"in", wait.Round(time.Second).String(),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("shutting down scheduler")
			return nil
		case <-timer.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.runner.RunOnce(ctx)
	if err != nil {
		s.logger.Error("run failed", "error", err)
		return
	}
	for _, w := range report.Warnings {
		s.logger.Warn("run warning", "run_id", report.RunID, "error", w)
	}
}
