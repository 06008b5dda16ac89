package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/freshpost/internal/model"
)

// Adapter kinds.
const (
	KindAPI      = "api"
	KindRendered = "rendered"
	KindStatic   = "static"
)

// Config is the root configuration for a freshpost run.
type Config struct {
	Sources      []SourceConfig
	Novelty      NoveltyConfig
	Classifier   ClassifierConfig
	Rendered     RenderedConfig
	SourceDelay  time.Duration // fixed politeness delay after each source
	RateLimit    RateLimitConfig
	Retry        RetryConfig
	State        StateConfig
	Notification NotificationConfig
	Schedule     ScheduleConfig
	Metrics      MetricsConfig
	UserAgent    string
}

// NoveltyConfig holds the tunables of the novelty engine.
type NoveltyConfig struct {
	FreshnessWindow  time.Duration // postings older than this are never reported as new
	NotifiedCap      int           // FIFO bound on notified keys per source
	HistoryRetention time.Duration // zero disables history pruning
}

// ClassifierConfig holds the noise rules. Empty lists fall back to the built-in defaults.
type ClassifierConfig struct {
	MinLength      int      `yaml:"min_length"`
	NoisePhrases   []string `yaml:"noise_phrases"`
	Stoplist       []string `yaml:"stoplist"`
	RoleKeywords   []string `yaml:"role_keywords"`
	ExtraPhrases   []string `yaml:"extra_noise_phrases"` // appended to the defaults
	ExtraStopwords []string `yaml:"extra_stoplist"`      // appended to the defaults
}

// RenderedConfig holds the global knobs for headless-browser sources.
type RenderedConfig struct {
	SettleDelay    time.Duration
	LoadMoreClicks int
	Scrolls        int
	MaxPages       int
	MaxItems       int
	Timeout        time.Duration
	ChromePath     string
}

// RateLimitConfig controls per-origin rate limiting.
type RateLimitConfig struct {
	MinDelay        time.Duration            // minimum gap between requests to the same origin host
	OriginOverrides map[string]time.Duration // per-host overrides
}

// MinDelayFor returns the configured delay for the given origin, falling back to MinDelay.
func (r RateLimitConfig) MinDelayFor(origin string) time.Duration {
	if d, ok := r.OriginOverrides[origin]; ok {
		return d
	}
	return r.MinDelay
}

// RetryConfig controls in-run retries of transient adapter errors.
// MaxRetries defaults to zero: failed sources are retried on the next run.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// StateConfig selects the persistent state store backend.
type StateConfig struct {
	Backend    string `yaml:"backend"` // memory, sqlite, gist, gcs, redis
	SQLitePath string `yaml:"sqlite_path"`
	GistToken  string `yaml:"gist_token"`
	GistID     string `yaml:"gist_id"`
	GistAPIURL string `yaml:"gist_api_url"`
	Bucket     string `yaml:"bucket"`
	Prefix     string `yaml:"prefix"`
	RedisAddr  string `yaml:"redis_addr"`
	RedisPass  string `yaml:"redis_password"`
	RedisDB    int    `yaml:"redis_db"`
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string   `yaml:"type"`        // "log", "email" or "slack"
	WebhookURL string   `yaml:"webhook_url"` // required if type is "slack"
	SMTPHost   string   `yaml:"smtp_host"`
	SMTPPort   int      `yaml:"smtp_port"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	From       string   `yaml:"from"`
	To         []string `yaml:"to"`
}

// ScheduleConfig controls the daemon loop used by `start`.
type ScheduleConfig struct {
	Interval time.Duration
	Cron     string
}

// MetricsConfig controls the optional Pushgateway export.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// SourceConfig describes a single monitored source.
type SourceConfig struct {
	Name             string         `yaml:"name"`
	Enabled          bool           `yaml:"enabled"`
	Keywords         []string       `yaml:"keywords"`
	ExcludeKeywords  []string       `yaml:"exclude_keywords"`
	Locations        []string       `yaml:"locations"`
	ExcludeLocations []string       `yaml:"exclude_locations"`
	Primary          AdapterConfig  `yaml:"primary"`
	Fallback         *AdapterConfig `yaml:"fallback"`
}

// AdapterConfig is the declarative description of one adapter strategy.
type AdapterConfig struct {
	Kind       string `yaml:"kind"`
	API        string `yaml:"api"` // flavor for kind=api
	BoardToken string `yaml:"board_token"`
	URL        string `yaml:"url"`   // page URL, or API base URL override
	Query      string `yaml:"query"` // search text for the workday and microsoft flavors

	Selectors         []string `yaml:"selectors"`
	LinkSelector      string   `yaml:"link_selector"`
	ConsentSelectors  []string `yaml:"consent_selectors"`
	LoadMoreSelectors []string `yaml:"load_more_selectors"`
	NextPageSelector  string   `yaml:"next_page_selector"`

	// Field mapping for the generic json flavor (dot paths).
	ItemsPath     string `yaml:"items_path"`
	IDField       string `yaml:"id_field"`
	TitleField    string `yaml:"title_field"`
	URLField      string `yaml:"url_field"`
	LocationField string `yaml:"location_field"`
	PostedField   string `yaml:"posted_field"`

	Timeout        time.Duration `yaml:"-"`
	SettleDelay    time.Duration `yaml:"-"`
	LoadMoreClicks *int          `yaml:"load_more_clicks"`
	Scrolls        *int          `yaml:"scrolls"`
	MaxPages       *int          `yaml:"max_pages"`
	MaxItems       *int          `yaml:"max_items"`

	RawTimeout     string `yaml:"timeout"`
	RawSettleDelay string `yaml:"settle_delay"`
}

// Defaults.
const (
	DefaultFreshnessWindow  = 48 * time.Hour
	DefaultNotifiedCap      = 200
	DefaultHistoryRetention = 90 * 24 * time.Hour
	DefaultSourceDelay      = 3 * time.Second
	DefaultUserAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Sources      []SourceConfig     `yaml:"sources"`
	Novelty      rawNoveltyConfig   `yaml:"novelty"`
	Classifier   ClassifierConfig   `yaml:"classifier"`
	Rendered     rawRenderedConfig  `yaml:"rendered"`
	SourceDelay  string             `yaml:"source_delay"`
	RateLimit    rawRateLimitConfig `yaml:"rate_limit"`
	Retry        rawRetryConfig     `yaml:"retry"`
	State        StateConfig        `yaml:"state"`
	Notification NotificationConfig `yaml:"notification"`
	Schedule     rawScheduleConfig  `yaml:"schedule"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	UserAgent    string             `yaml:"user_agent"`
}

type rawNoveltyConfig struct {
	FreshnessWindow  string `yaml:"freshness_window"`
	NotifiedCap      int    `yaml:"notified_cap"`
	HistoryRetention string `yaml:"history_retention"`
}

type rawRenderedConfig struct {
	SettleDelay    string `yaml:"settle_delay"`
	LoadMoreClicks *int   `yaml:"load_more_clicks"`
	Scrolls        *int   `yaml:"scrolls"`
	MaxPages       int    `yaml:"max_pages"`
	MaxItems       int    `yaml:"max_items"`
	Timeout        string `yaml:"timeout"`
	ChromePath     string `yaml:"chrome_path"`
}

type rawRateLimitConfig struct {
	MinDelay        string            `yaml:"min_delay"`
	OriginOverrides map[string]string `yaml:"origin_overrides"`
}

type rawRetryConfig struct {
	MaxRetries int    `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
}

type rawScheduleConfig struct {
	Interval string `yaml:"interval"`
	Cron     string `yaml:"cron"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse expands environment variables in data, parses it and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var err error
	cfg := &Config{
		Sources:      raw.Sources,
		Classifier:   raw.Classifier,
		State:        raw.State,
		Notification: raw.Notification,
		Metrics:      raw.Metrics,
		UserAgent:    raw.UserAgent,
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	if cfg.Novelty.FreshnessWindow, err = parseDuration("novelty.freshness_window", raw.Novelty.FreshnessWindow, DefaultFreshnessWindow); err != nil {
		return nil, err
	}
	if cfg.Novelty.HistoryRetention, err = parseDuration("novelty.history_retention", raw.Novelty.HistoryRetention, DefaultHistoryRetention); err != nil {
		return nil, err
	}
	cfg.Novelty.NotifiedCap = raw.Novelty.NotifiedCap
	if cfg.Novelty.NotifiedCap == 0 {
		cfg.Novelty.NotifiedCap = DefaultNotifiedCap
	}

	if cfg.SourceDelay, err = parseDuration("source_delay", raw.SourceDelay, DefaultSourceDelay); err != nil {
		return nil, err
	}

	cfg.Rendered = RenderedConfig{
		LoadMoreClicks: intOr(raw.Rendered.LoadMoreClicks, 2),
		Scrolls:        intOr(raw.Rendered.Scrolls, 2),
		MaxPages:       raw.Rendered.MaxPages,
		MaxItems:       raw.Rendered.MaxItems,
		ChromePath:     raw.Rendered.ChromePath,
	}
	if cfg.Rendered.MaxPages <= 0 {
		cfg.Rendered.MaxPages = 1
	}
	if cfg.Rendered.MaxItems <= 0 {
		cfg.Rendered.MaxItems = 30
	}
	if cfg.Rendered.SettleDelay, err = parseDuration("rendered.settle_delay", raw.Rendered.SettleDelay, 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.Rendered.Timeout, err = parseDuration("rendered.timeout", raw.Rendered.Timeout, 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.RateLimit.MinDelay, err = parseDuration("rate_limit.min_delay", raw.RateLimit.MinDelay, 2*time.Second); err != nil {
		return nil, err
	}
	cfg.RateLimit.OriginOverrides = make(map[string]time.Duration)
	for origin, v := range raw.RateLimit.OriginOverrides {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse rate_limit.origin_overrides[%q]: %w", origin, err)
		}
		cfg.RateLimit.OriginOverrides[origin] = d
	}

	cfg.Retry.MaxRetries = raw.Retry.MaxRetries
	if cfg.Retry.BaseDelay, err = parseDuration("retry.base_delay", raw.Retry.BaseDelay, 5*time.Second); err != nil {
		return nil, err
	}

	if cfg.Schedule.Interval, err = parseDuration("schedule.interval", raw.Schedule.Interval, time.Hour); err != nil {
		return nil, err
	}
	cfg.Schedule.Cron = raw.Schedule.Cron

	if cfg.State.Backend == "" {
		cfg.State.Backend = "sqlite"
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "freshpost.db"
	}
	if cfg.Notification.Type == "" {
		cfg.Notification.Type = "log"
	}
	if cfg.Notification.SMTPPort == 0 {
		cfg.Notification.SMTPPort = 587
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "freshpost"
	}

	for i := range cfg.Sources {
		s := &cfg.Sources[i]
		if err := resolveAdapter(s.Name, "primary", &s.Primary, cfg.Rendered); err != nil {
			return nil, err
		}
		if s.Fallback != nil {
			if err := resolveAdapter(s.Name, "fallback", s.Fallback, cfg.Rendered); err != nil {
				return nil, err
			}
		}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnabledSources returns the sources with enabled: true, in config order.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

func resolveAdapter(source, role string, a *AdapterConfig, rc RenderedConfig) error {
	var err error
	defTimeout := 30 * time.Second
	if a.Kind == KindRendered {
		defTimeout = rc.Timeout
	}
	if a.Timeout, err = parseDuration(fmt.Sprintf("sources[%s].%s.timeout", source, role), a.RawTimeout, defTimeout); err != nil {
		return err
	}
	if a.SettleDelay, err = parseDuration(fmt.Sprintf("sources[%s].%s.settle_delay", source, role), a.RawSettleDelay, rc.SettleDelay); err != nil {
		return err
	}
	if a.Kind == KindRendered {
		a.LoadMoreClicks = intPtrOr(a.LoadMoreClicks, rc.LoadMoreClicks)
		a.Scrolls = intPtrOr(a.Scrolls, rc.Scrolls)
		a.MaxPages = intPtrOr(a.MaxPages, rc.MaxPages)
	}
	a.MaxItems = intPtrOr(a.MaxItems, rc.MaxItems)
	return nil
}

func validate(cfg *Config) error {
	enabled := cfg.EnabledSources()
	if len(enabled) == 0 {
		return fmt.Errorf("at least one source must be enabled: %w", model.ErrNoSources)
	}

	names := make(map[string]bool)
	for _, s := range enabled {
		if strings.TrimSpace(s.Name) == "" {
			return errors.New("source name is required")
		}
		if strings.Contains(s.Name, ":") {
			return fmt.Errorf("source name %q must not contain ':'", s.Name)
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		names[s.Name] = true
		if err := validateAdapter(s.Name, s.Primary); err != nil {
			return err
		}
		if s.Fallback != nil {
			if err := validateAdapter(s.Name, *s.Fallback); err != nil {
				return err
			}
		}
	}

	if cfg.Novelty.FreshnessWindow <= 0 {
		return fmt.Errorf("novelty.freshness_window must be positive, got %v", cfg.Novelty.FreshnessWindow)
	}
	if cfg.Novelty.NotifiedCap < 0 {
		return fmt.Errorf("novelty.notified_cap must not be negative, got %d", cfg.Novelty.NotifiedCap)
	}
	if cfg.Novelty.HistoryRetention != 0 && cfg.Novelty.HistoryRetention < cfg.Novelty.FreshnessWindow {
		return fmt.Errorf("novelty.history_retention (%v) must be at least the freshness window (%v)",
			cfg.Novelty.HistoryRetention, cfg.Novelty.FreshnessWindow)
	}
	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be positive, got %v", cfg.Schedule.Interval)
	}

	switch cfg.State.Backend {
	case "memory", "sqlite", "gist", "gcs", "redis":
	default:
		return fmt.Errorf("state.backend %q is not supported", cfg.State.Backend)
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	case "email":
		if cfg.Notification.SMTPHost == "" {
			return fmt.Errorf("notification.smtp_host is required when type is \"email\"")
		}
		if cfg.Notification.From == "" || len(cfg.Notification.To) == 0 {
			return fmt.Errorf("notification.from and notification.to are required when type is \"email\"")
		}
	default:
		return fmt.Errorf("notification.type %q is not supported", cfg.Notification.Type)
	}

	return nil
}

func validateAdapter(source string, a AdapterConfig) error {
	switch a.Kind {
	case KindAPI:
		switch a.API {
		case "greenhouse", "lever", "ashby", "gem":
			if a.BoardToken == "" {
				return fmt.Errorf("source %s: board_token is required for api %q", source, a.API)
			}
		case "workday", "json":
			if a.URL == "" {
				return fmt.Errorf("source %s: url is required for api %q", source, a.API)
			}
		case "microsoft":
		default:
			return fmt.Errorf("source %s: unsupported api flavor %q", source, a.API)
		}
	case KindRendered, KindStatic:
		if a.URL == "" {
			return fmt.Errorf("source %s: url is required for %s adapter", source, a.Kind)
		}
		if len(a.Selectors) == 0 {
			return fmt.Errorf("source %s: at least one selector is required for %s adapter", source, a.Kind)
		}
	default:
		return fmt.Errorf("source %s: unsupported adapter kind %q", source, a.Kind)
	}
	return nil
}

func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	return d, nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func intPtrOr(p *int, def int) *int {
	if p != nil {
		return p
	}
	v := def
	return &v
}
