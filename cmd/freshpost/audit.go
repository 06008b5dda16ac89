package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/freshpost/internal/audit"
	"github.com/amishk599/freshpost/internal/config"
	"github.com/amishk599/freshpost/internal/filter"
	"github.com/amishk599/freshpost/internal/ratelimit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect a source's candidates interactively (TUI)",
	Long:  "Shows the source picker, runs the source's adapters, then shows every raw candidate next to the accepted postings and their canonical keys.",
	RunE:  runAuditCmd,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAuditCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Any log output while the TUI runs corrupts the display.
	runAudit(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return nil
}

func runAudit(cfg *config.Config, logger *slog.Logger) {
	enabled := cfg.EnabledSources()
	if len(enabled) == 0 {
		fmt.Println("No enabled sources in config.")
		return
	}

	httpClient := newHTTPClient()
	limiter := ratelimit.NewOriginLimiterFunc(cfg.RateLimit.MinDelayFor)
	classifier := filter.NewNoiseClassifier(cfg.Classifier)

	for {
		choice, err := audit.RunSourcePicker(enabled)
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return
		}
		if choice < 0 {
			return
		}
		src := enabled[choice]

		p, err := buildPoller(cfg, src, classifier, limiter, httpClient, logger)
		if err != nil {
			fmt.Printf("Cannot build source %s: %v\n", src.Name, err)
			continue
		}

		relevance := relevanceFilter(src)
		ins, err := audit.RunLoader(src.Name, func(ctx context.Context) audit.Inspection {
			return audit.Inspect(ctx, p, relevance, classifier)
		})
		if err != nil {
			fmt.Printf("Error collecting candidates: %v\n", err)
			continue
		}

		wantQuit, err := audit.RunAuditTUI(ins)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return
		}
		// else: loop → back to picker
	}
}
