// Package metrics records grab outcomes as Prometheus series. A Recorder
// satisfies both the assembler observer and the fetch observer, so one value
// can be handed to each.
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Digital-Shane/guide-tidy/internal/guide"
	"github.com/Digital-Shane/guide-tidy/internal/provider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "guide_tidy"

// Recorder owns a private registry so several grabs in one process (and
// tests) never collide on the default one.
type Recorder struct {
	registry *prometheus.Registry

	itemsDropped      *prometheus.CounterVec
	detailsMissing    *prometheus.CounterVec
	enrichments       *prometheus.CounterVec
	programsAssembled *prometheus.CounterVec
	fetches           *prometheus.CounterVec
	fetchDuration     *prometheus.HistogramVec
	lastGrab          prometheus.Gauge
}

// New creates a Recorder with every series registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		itemsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_dropped_total",
			Help:      "Schedule items discarded before assembly",
		}, []string{"site", "channel", "reason"}),
		detailsMissing: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "details_missing_total",
			Help:      "Detail lookups that failed",
		}, []string{"site", "reason"}),
		enrichments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Metadata search lookups by backend and outcome",
		}, []string{"site", "backend", "result"}),
		programsAssembled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "programs_assembled_total",
			Help:      "Programs produced per channel",
		}, []string{"site", "channel"}),
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "HTTP requests by host, status and cache outcome",
		}, []string{"host", "status", "cached"}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"host"}),
		lastGrab: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_grab_timestamp_seconds",
			Help:      "Unix time the last grab finished",
		}),
	}
}

// Registry exposes the underlying registry for scraping or export.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ItemDropped(site, channel string, err error) {
	r.itemsDropped.WithLabelValues(site, channel, reason(err)).Inc()
}

func (r *Recorder) DetailMissing(site, _ string, err error) {
	r.detailsMissing.WithLabelValues(site, reason(err)).Inc()
}

func (r *Recorder) Enriched(site, backend string, found bool) {
	result := "miss"
	if found {
		result = "hit"
	}
	r.enrichments.WithLabelValues(site, backend, result).Inc()
}

func (r *Recorder) ProgramsAssembled(site, channel string, n int) {
	r.programsAssembled.WithLabelValues(site, channel).Add(float64(n))
}

func (r *Recorder) Fetched(host string, status int, d time.Duration, cached bool) {
	r.fetches.WithLabelValues(host, strconv.Itoa(status), strconv.FormatBool(cached)).Inc()
	if !cached {
		r.fetchDuration.WithLabelValues(host).Observe(d.Seconds())
	}
}

// GrabFinished stamps the completion time.
func (r *Recorder) GrabFinished(at time.Time) {
	r.lastGrab.Set(float64(at.Unix()))
}

// WriteTextfile writes every series in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

// reason maps an error to a low-cardinality label.
func reason(err error) string {
	if err == nil {
		return "none"
	}
	var pe *provider.ProviderError
	switch {
	case errors.As(err, &pe):
		return pe.Code
	case errors.Is(err, guide.ErrMalformedStart):
		return "malformed_start"
	case errors.Is(err, guide.ErrMalformedDuration):
		return "malformed_duration"
	case errors.Is(err, guide.ErrEmptyInterval):
		return "empty_interval"
	}
	return "error"
}
