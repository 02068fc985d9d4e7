// Package metrics records crawl measurements in a Prometheus registry.
//
// The registry is private to a Metrics value and is exported with
// WriteTextfile, in the text format read by the node_exporter textfile
// collector. Per-fetch measurements arrive through the crawler.Recorder
// returned by Recorder; per-run gauges are set by ObserveRun.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/linkscan/internal/crawler"
	"github.com/nao1215/linkscan/internal/model"
)

// Failure reasons used as the "reason" label.
const (
	ReasonStatus   = "status"
	ReasonTimeout  = "timeout"
	ReasonCanceled = "canceled"
	ReasonNetwork  = "network"
)

// Metrics holds the linkscan collectors.
type Metrics struct {
	registry *prometheus.Registry

	pagesFetched   *prometheus.CounterVec
	fetchFailures  *prometheus.CounterVec
	linksFound     *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	runDuration    *prometheus.GaugeVec
	internalLinks  *prometheus.GaugeVec
	externalLinks  *prometheus.GaugeVec
	lastRunPartial *prometheus.GaugeVec
}

// New creates a Metrics with all collectors registered.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pagesFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkscan_pages_fetched_total",
				Help: "Total number of pages fetched successfully",
			},
			[]string{"seed", "code"},
		),
		fetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkscan_fetch_failures_total",
				Help: "Total number of failed fetches",
			},
			[]string{"seed", "reason"},
		),
		linksFound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkscan_links_discovered_total",
				Help: "Total number of distinct links discovered",
			},
			[]string{"seed", "kind"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linkscan_fetch_duration_seconds",
				Help:    "Fetch duration distribution in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"seed"},
		),
		runDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "linkscan_run_duration_seconds",
				Help: "Wall-clock duration of the last crawl",
			},
			[]string{"seed"},
		),
		internalLinks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "linkscan_internal_links",
				Help: "Internal links found by the last crawl",
			},
			[]string{"seed"},
		),
		externalLinks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "linkscan_external_links",
				Help: "External links found by the last crawl",
			},
			[]string{"seed"},
		),
		lastRunPartial: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "linkscan_last_run_partial",
				Help: "1 if the last crawl stopped before exhausting its frontier",
			},
			[]string{"seed"},
		),
	}

	collectors := []prometheus.Collector{
		m.pagesFetched,
		m.fetchFailures,
		m.linksFound,
		m.fetchDuration,
		m.runDuration,
		m.internalLinks,
		m.externalLinks,
		m.lastRunPartial,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return m, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Recorder returns a crawler.Recorder that labels measurements with seed.
func (m *Metrics) Recorder(seed string) crawler.Recorder {
	return &seedRecorder{m: m, seed: seed}
}

// ObserveRun sets the per-run gauges from a finished report.
func (m *Metrics) ObserveRun(report *model.CrawlReport) {
	m.runDuration.WithLabelValues(report.Seed).Set(report.Duration().Seconds())
	m.internalLinks.WithLabelValues(report.Seed).Set(float64(report.TotalInternal()))
	m.externalLinks.WithLabelValues(report.Seed).Set(float64(report.TotalExternal()))
	partial := 0.0
	if report.Partial() {
		partial = 1
	}
	m.lastRunPartial.WithLabelValues(report.Seed).Set(partial)
}

// WriteTextfile writes the registry to path in Prometheus text format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

type seedRecorder struct {
	m    *Metrics
	seed string
}

func (r *seedRecorder) ObserveFetch(statusCode int, elapsed time.Duration, err error) {
	r.m.fetchDuration.WithLabelValues(r.seed).Observe(elapsed.Seconds())
	if err != nil {
		r.m.fetchFailures.WithLabelValues(r.seed, FailureReason(err)).Inc()
		return
	}
	r.m.pagesFetched.WithLabelValues(r.seed, strconv.Itoa(statusCode)).Inc()
}

func (r *seedRecorder) ObserveLink(internal bool) {
	kind := "external"
	if internal {
		kind = "internal"
	}
	r.m.linksFound.WithLabelValues(r.seed, kind).Inc()
}

// FailureReason classifies a fetch error for the "reason" label.
func FailureReason(err error) string {
	var statusErr *crawler.StatusError
	var netErr net.Error
	switch {
	case errors.As(err, &statusErr):
		return ReasonStatus
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonTimeout
	default:
		return ReasonNetwork
	}
}
