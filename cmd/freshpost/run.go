package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/freshpost/internal/model"
	"github.com/amishk599/freshpost/internal/store"
)

var runCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"once"},
	Short:   "Run one collect, notify and persist cycle, then exit",
	RunE:    runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

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
		logger.Error("no sources to poll", "error", model.ErrNoSources)
		os.Exit(1)
	}

	c := newCoordinator(cfg, pollers, st, setupNotifier(cfg, httpClient, logger), setupRecorder(cfg, httpClient), logger)
	report, err := c.RunOnce(ctx)
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
	logReport(report, logger)
	for _, w := range report.Warnings {
		logger.Warn("run warning", "error", w)
	}
	return nil
}
