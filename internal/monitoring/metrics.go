package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters of one batch run on a private registry, so
// concurrent runs and tests never collide on the default registry.
// A nil *Metrics discards every observation.
type Metrics struct {
	Registry *prometheus.Registry

	stagePixels   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	missing       prometheus.Gauge
	fusionPixels  *prometheus.CounterVec
}

// NewMetrics registers the run metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		stagePixels: f.NewCounterVec(prometheus.CounterOpts{
			Name: "landcover_stage_pixels_changed_total",
			Help: "Pixel-years changed by each pipeline stage",
		}, []string{"stage"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "landcover_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms to ~3min
		}, []string{"stage"}),
		missing: f.NewGauge(prometheus.GaugeOpts{
			Name: "landcover_missing_observation_pixels",
			Help: "Pixels with no valid label in any year",
		}),
		fusionPixels: f.NewCounterVec(prometheus.CounterOpts{
			Name: "landcover_fusion_rule_pixels_total",
			Help: "Pixels set by each fusion rule",
		}, []string{"rule"}),
	}
}

// ObserveStage records one completed stage.
func (m *Metrics) ObserveStage(stage string, changed int, d time.Duration) {
	if m == nil {
		return
	}
	m.stagePixels.WithLabelValues(stage).Add(float64(changed))
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SetMissingObservations records the all-missing pixel count.
func (m *Metrics) SetMissingObservations(n int) {
	if m == nil {
		return
	}
	m.missing.Set(float64(n))
}

// AddFusionRule records the pixels a fusion rule set.
func (m *Metrics) AddFusionRule(rule string, fired int) {
	if m == nil {
		return
	}
	m.fusionPixels.WithLabelValues(rule).Add(float64(fired))
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
