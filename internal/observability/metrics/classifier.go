package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClassifierMetrics contains Prometheus metrics for the inference adapter.
type ClassifierMetrics struct {
	registry *prometheus.Registry

	ClassificationDuration *prometheus.HistogramVec
	ClassificationsTotal   *prometheus.CounterVec
	PredictionsTotal       *prometheus.CounterVec
	ModelLoadTotal         *prometheus.CounterVec
	ModelLoadedGauge       prometheus.Gauge
	ActiveClassifications  prometheus.Gauge
}

// NewClassifierMetrics creates and registers classifier metrics.
func NewClassifierMetrics(registry *prometheus.Registry) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize classifier metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
	}
	return m, nil
}

func (m *ClassifierMetrics) initMetrics() error {
	m.ClassificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brixfix_classification_duration_seconds",
			Help:    "Time taken to decode, preprocess and classify one image",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"backend"},
	)

	m.ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brixfix_classifications_total",
			Help: "Total number of classification requests by outcome",
		},
		[]string{"backend", "outcome"},
	)

	m.PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brixfix_predictions_total",
			Help: "Total number of successful predictions per damage label",
		},
		[]string{"label"},
	)

	m.ModelLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brixfix_model_load_total",
			Help: "Total number of model load attempts",
		},
		[]string{"backend", "status"},
	)

	m.ModelLoadedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brixfix_model_loaded",
		Help: "Whether the classification model is loaded (1) or not (0)",
	})

	m.ActiveClassifications = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brixfix_active_classifications",
		Help: "Number of classifications currently running",
	})

	return nil
}

// RecordClassification records one classify call. label is empty for failures.
func (m *ClassifierMetrics) RecordClassification(backend, outcome, label string, d time.Duration) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(backend, outcome).Inc()
	if outcome != OutcomeSuccess {
		return
	}
	m.ClassificationDuration.WithLabelValues(backend).Observe(d.Seconds())
	if label != "" {
		m.PredictionsTotal.WithLabelValues(label).Inc()
	}
}

// RecordModelLoad records a model load attempt and updates the loaded gauge.
func (m *ClassifierMetrics) RecordModelLoad(backend string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ModelLoadTotal.WithLabelValues(backend, StatusError).Inc()
		m.ModelLoadedGauge.Set(0)
		return
	}
	m.ModelLoadTotal.WithLabelValues(backend, StatusSuccess).Inc()
	m.ModelLoadedGauge.Set(1)
}

// TrackActive increments the active gauge and returns the matching decrement.
func (m *ClassifierMetrics) TrackActive() func() {
	if m == nil {
		return func() {}
	}
	m.ActiveClassifications.Inc()
	return m.ActiveClassifications.Dec
}

// Describe implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ClassificationDuration.Describe(ch)
	m.ClassificationsTotal.Describe(ch)
	m.PredictionsTotal.Describe(ch)
	m.ModelLoadTotal.Describe(ch)
	ch <- m.ModelLoadedGauge.Desc()
	ch <- m.ActiveClassifications.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ClassificationDuration.Collect(ch)
	m.ClassificationsTotal.Collect(ch)
	m.PredictionsTotal.Collect(ch)
	m.ModelLoadTotal.Collect(ch)
	ch <- m.ModelLoadedGauge
	ch <- m.ActiveClassifications
}
