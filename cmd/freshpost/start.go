package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/freshpost/internal/scheduler"
	"github.com/amishk599/freshpost/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the polling daemon",
	Long:  "Runs immediately, then on schedule.interval or schedule.cron; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"interval", cfg.Schedule.Interval.String(),
		"cron", cfg.Schedule.Cron,
		"sources", len(cfg.EnabledSources()),
		"freshness_window", cfg.Novelty.FreshnessWindow.String(),
		"state_backend", cfg.State.Backend,
	)

	ctx, stop := signalContext()
	defer stop()

	st, err := store.Open(ctx, cfg.State, logger)
	if err != nil {
		logger.Error("failed to open state store", "backend", cfg.State.Backend, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	httpClient := newHTTPClient()
	pollers := buildPollers(cfg, httpClient, logger)
	if len(pollers) == 0 {
		logger.Error("no sources to poll")
		os.Exit(1)
	}

	c := newCoordinator(cfg, pollers, st, setupNotifier(cfg, httpClient, logger), setupRecorder(cfg, httpClient), logger)
	sched, err := scheduler.NewScheduler(c, cfg.Schedule.Interval, cfg.Schedule.Cron, logger)
	if err != nil {
		logger.Error("invalid schedule", "error", err)
		os.Exit(1)
	}
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
