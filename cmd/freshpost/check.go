package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/freshpost/internal/notifier"
	"github.com/amishk599/freshpost/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run once without state, print the digest, exit",
	Long:  "Dry run: collects every source, logs what would be reported and exits. State is neither read nor written and nothing is sent.",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("check mode: state is not persisted and nothing is sent")

	httpClient := newHTTPClient()
	pollers := buildPollers(cfg, httpClient, logger)
	if len(pollers) == 0 {
		logger.Error("no sources to poll")
		os.Exit(1)
	}

	ctx, stop := signalContext()
	defer stop()

	c := newCoordinator(cfg, pollers, store.Nop(), notifier.NewLogNotifier(logger), nil, logger)
	report, err := c.RunOnce(ctx)
	if err != nil {
		logger.Error("check failed", "error", err)
		os.Exit(1)
	}
	logReport(report, logger)

	logger.Info("check complete", "novel", report.Novel, "failed_sources", report.FailedSources())
	return nil
}
