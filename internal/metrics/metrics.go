// Package metrics exports run reports to a Prometheus Pushgateway. freshpost
// runs as a short-lived job, so metrics are pushed rather than scraped.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/amishk599/freshpost/internal/coordinator"
)

// Ensure Pusher implements coordinator.Recorder.
var _ coordinator.Recorder = (*Pusher)(nil)

// Pusher pushes the gauges of each run report to a Pushgateway.
type Pusher struct {
	url    string
	job    string
	client *http.Client
}

// NewPusher creates a pusher for the given gateway URL and job name.
func NewPusher(url, job string, client *http.Client) *Pusher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Pusher{url: url, job: job, client: client}
}

// Collectors holds the gauges describing one run.
type Collectors struct {
	lastRun    prometheus.Gauge
	duration   prometheus.Gauge
	novel      prometheus.Gauge
	discovered prometheus.Gauge
	stale      prometheus.Gauge
	pruned     prometheus.Gauge
	delivered  prometheus.Gauge
	warnings   prometheus.Gauge

	sourceUp       *prometheus.GaugeVec
	sourceRaw      *prometheus.GaugeVec
	sourcePostings *prometheus.GaugeVec
	sourceNovel    *prometheus.GaugeVec
}

// NewCollectors registers the run gauges against reg.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "freshpost_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "freshpost_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		novel: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "freshpost_novel_postings",
			Help: "Postings included in the last digest.",
		}),
		discovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "freshpost_discovered_postings",
			Help: "Keys recorded in history for the first time during the last run.",
		}),
		stale: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "freshpost_stale_postings",
			Help: "Postings excluded by the freshness window during the last run.",
		}),
		pruned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "freshpost_pruned_history_entries",
			Help: "History entries removed by retention during the last run.",
		}),
		delivered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "freshpost_notification_delivered",
			Help: "1 if the last run delivered a digest, 0 otherwise.",
		}),
		warnings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "freshpost_run_warnings",
			Help: "Non-fatal failures during the last run.",
		}),
		sourceUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "freshpost_source_up",
			Help: "1 if the source was collected without error.",
		}, []string{"source", "adapter"}),
		sourceRaw: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "freshpost_source_raw_candidates",
			Help: "Candidates extracted from the source before filtering.",
		}, []string{"source"}),
		sourcePostings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "freshpost_source_postings",
			Help: "Postings kept after filtering.",
		}, []string{"source"}),
		sourceNovel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "freshpost_source_novel_postings",
			Help: "Novel postings per source in the last run.",
		}, []string{"source"}),
	}
	for _, collector := range []prometheus.Collector{
		c.lastRun, c.duration, c.novel, c.discovered, c.stale, c.pruned, c.delivered, c.warnings,
		c.sourceUp, c.sourceRaw, c.sourcePostings, c.sourceNovel,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register run collector: %w", err)
		}
	}
	return c, nil
}

// Observe sets every gauge from the report.
func (c *Collectors) Observe(r *coordinator.Report) {
	c.lastRun.Set(float64(r.FinishedAt.Unix()))
	c.duration.Set(r.Duration().Seconds())
	c.novel.Set(float64(r.Novel))
	c.discovered.Set(float64(r.Discovered))
	c.stale.Set(float64(r.Stale))
	c.pruned.Set(float64(r.Pruned))
	c.warnings.Set(float64(len(r.Warnings)))
	c.delivered.Set(boolFloat(r.Delivered))

	for _, o := range r.Sources {
		c.sourceUp.WithLabelValues(o.Source, o.Adapter).Set(boolFloat(o.Err == nil))
		c.sourceRaw.WithLabelValues(o.Source).Set(float64(o.Raw))
		c.sourcePostings.WithLabelValues(o.Source).Set(float64(o.Postings))
		c.sourceNovel.WithLabelValues(o.Source).Set(float64(o.Novel))
	}
}

// Record pushes the report, replacing the job's previous metrics.
func (p *Pusher) Record(ctx context.Context, r *coordinator.Report) error {
	reg := prometheus.NewRegistry()
	c, err := NewCollectors(reg)
	if err != nil {
		return err
	}
	c.Observe(r)

	if err := push.New(p.url, p.job).Client(p.client).Gatherer(reg).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", p.url, err)
	}
	return nil
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
