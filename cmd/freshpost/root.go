package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/amishk599/freshpost/internal/adapter"
	"github.com/amishk599/freshpost/internal/config"
	"github.com/amishk599/freshpost/internal/coordinator"
	"github.com/amishk599/freshpost/internal/filter"
	"github.com/amishk599/freshpost/internal/metrics"
	"github.com/amishk599/freshpost/internal/model"
	"github.com/amishk599/freshpost/internal/notifier"
	"github.com/amishk599/freshpost/internal/poller"
	"github.com/amishk599/freshpost/internal/ratelimit"
	"github.com/amishk599/freshpost/internal/retry"
)

var (
	cfgPath string
	envFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "freshpost",
	Short: "Career-page novelty digest",
	Long:  "freshpost polls career pages and job APIs and sends a digest of postings that are genuinely new since the last delivered notification.",
	// Default to a single run so that cron and CI jobs can invoke the binary directly.
	RunE:          runOnce,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: FRESHPOST_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with credentials, ignored when missing")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig reads the dotenv file, resolves the config path and parses it.
// Priority: explicit path arg > FRESHPOST_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if path == "" {
		if env := os.Getenv("FRESHPOST_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	case "email":
		logger.Info("using email notifier", "smtp_host", cfg.Notification.SMTPHost, "to", cfg.Notification.To)
		return notifier.NewEmailNotifier(cfg.Notification, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

func setupRecorder(cfg *config.Config, httpClient *http.Client) coordinator.Recorder {
	if cfg.Metrics.PushgatewayURL == "" {
		return nil
	}
	return metrics.NewPusher(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, httpClient)
}

func relevanceFilter(src config.SourceConfig) model.PostingFilter {
	return filter.NewTitleAndLocationFilter(src.Keywords, src.ExcludeKeywords, src.Locations, src.ExcludeLocations)
}

// buildStrategy wraps an adapter with origin rate limiting and, outside it,
// in-run retries.
func buildStrategy(cfg *config.Config, source string, a config.AdapterConfig, limiter *ratelimit.OriginLimiter, httpClient *http.Client, logger *slog.Logger) (poller.Strategy, error) {
	f, err := adapter.New(source, a, adapter.Options{
		Client:     httpClient,
		UserAgent:  cfg.UserAgent,
		Horizon:    cfg.Novelty.FreshnessWindow,
		ChromePath: cfg.Rendered.ChromePath,
		Logger:     logger,
	})
	if err != nil {
		return poller.Strategy{}, err
	}
	var fetcher model.CandidateFetcher = ratelimit.Wrap(f, limiter, adapter.Origin(a))
	if cfg.Retry.MaxRetries > 0 {
		fetcher = retry.Wrap(fetcher, source, cfg.Retry.MaxRetries, cfg.Retry.BaseDelay, logger)
	}
	return poller.Strategy{Name: adapter.Describe(a), Fetcher: fetcher}, nil
}

func buildPoller(cfg *config.Config, src config.SourceConfig, classifier poller.Classifier, limiter *ratelimit.OriginLimiter, httpClient *http.Client, logger *slog.Logger) (*poller.SourcePoller, error) {
	primary, err := buildStrategy(cfg, src.Name, src.Primary, limiter, httpClient, logger)
	if err != nil {
		return nil, err
	}
	var fallback *poller.Strategy
	if src.Fallback != nil {
		fb, err := buildStrategy(cfg, src.Name, *src.Fallback, limiter, httpClient, logger)
		if err != nil {
			return nil, err
		}
		fallback = &fb
	}
	return poller.NewSourcePoller(src.Name, primary, fallback, relevanceFilter(src), classifier, logger), nil
}

func buildPollers(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) []*poller.SourcePoller {
	limiter := ratelimit.NewOriginLimiterFunc(cfg.RateLimit.MinDelayFor)
	classifier := filter.NewNoiseClassifier(cfg.Classifier)
	logger.Info("rate limiter configured", "min_delay", cfg.RateLimit.MinDelay.String())

	var pollers []*poller.SourcePoller
	for _, src := range cfg.EnabledSources() {
		p, err := buildPoller(cfg, src, classifier, limiter, httpClient, logger)
		if err != nil {
			logger.Warn("skipping source", "source", src.Name, "error", err)
			continue
		}
		pollers = append(pollers, p)
		logger.Info("registered source", "name", src.Name, "adapter", adapter.Describe(src.Primary))
	}
	return pollers
}

func newCoordinator(cfg *config.Config, pollers []*poller.SourcePoller, store model.StateStore, n model.Notifier, recorder coordinator.Recorder, logger *slog.Logger) *coordinator.Coordinator {
	return coordinator.New(pollers, store, n, recorder, coordinator.Options{
		FreshnessWindow:  cfg.Novelty.FreshnessWindow,
		NotifiedCap:      cfg.Novelty.NotifiedCap,
		HistoryRetention: cfg.Novelty.HistoryRetention,
		SourceDelay:      cfg.SourceDelay,
	}, logger)
}

// logReport prints the per-source outcome of a run.
func logReport(r *coordinator.Report, logger *slog.Logger) {
	for _, o := range r.Sources {
		args := []any{"source", o.Source, "adapter", o.Adapter, "raw", o.Raw, "postings", o.Postings, "novel", o.Novel}
		if o.Err != nil {
			logger.Warn("source outcome", append(args, "error", o.Err)...)
			continue
		}
		logger.Info("source outcome", args...)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
