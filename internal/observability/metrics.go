// Package observability exposes prometheus metrics for pipeline runs.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's prometheus collectors on a dedicated
// registry so tests can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	ClipsProcessed  prometheus.Counter
	ClipsDetected   prometheus.Counter
	ClipErrors      prometheus.Counter
	DetectionsTotal prometheus.Counter
	RunDuration     prometheus.Gauge
	LastRunUnix     prometheus.Gauge
}

// NewMetrics creates and registers the pipeline collectors.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.ClipsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "meteor",
		Name:      "clips_processed_total",
		Help:      "Number of clips processed by the pipeline.",
	})
	m.ClipsDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "meteor",
		Name:      "clips_detected_total",
		Help:      "Number of clips with at least one detected streak.",
	})
	m.ClipErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "meteor",
		Name:      "clip_errors_total",
		Help:      "Number of clips that failed to download or detect.",
	})
	m.DetectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "meteor",
		Name:      "detections_total",
		Help:      "Number of detected line segments.",
	})
	m.RunDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "meteor",
		Name:      "run_duration_seconds",
		Help:      "Duration of the most recent pipeline run.",
	})
	m.LastRunUnix = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "meteor",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the most recent pipeline run.",
	})

	m.registry.MustRegister(
		m.ClipsProcessed,
		m.ClipsDetected,
		m.ClipErrors,
		m.DetectionsTotal,
		m.RunDuration,
		m.LastRunUnix,
	)
	return m
}

// Registry returns the underlying registry, for exposition or test
// gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
