package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics contains Prometheus metrics for damage alerts.
type NotificationMetrics struct {
	registry *prometheus.Registry

	deliveriesTotal  *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	deliveryErrors   *prometheus.CounterVec
	filterMatches    *prometheus.CounterVec
	filterRejections *prometheus.CounterVec
	dispatchActive   prometheus.Gauge
}

// NewNotificationMetrics creates and registers notification metrics.
func NewNotificationMetrics(registry *prometheus.Registry) (*NotificationMetrics, error) {
	m := &NotificationMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize notification metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

func (m *NotificationMetrics) initMetrics() error {
	m.deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brixfix_notification_deliveries_total",
			Help: "Total number of alert deliveries by service and status",
		},
		[]string{"service", "status"},
	)

	m.deliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brixfix_notification_delivery_duration_seconds",
			Help:    "Time taken to deliver an alert",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"service"},
	)

	m.deliveryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brixfix_notification_delivery_errors_total",
			Help: "Total number of failed alert deliveries",
		},
		[]string{"service", "error_type"},
	)

	m.filterMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brixfix_notification_filter_matches_total",
			Help: "Detections that matched the alert filter",
		},
		[]string{"label"},
	)

	m.filterRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brixfix_notification_filter_rejections_total",
			Help: "Detections dropped by the alert filter",
		},
		[]string{"reason"}, // label, confidence
	)

	m.dispatchActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brixfix_notification_dispatch_active",
		Help: "Alerts currently being sent",
	})

	return nil
}

// RecordDelivery records one delivery attempt to a service.
func (m *NotificationMetrics) RecordDelivery(service string, d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.deliveriesTotal.WithLabelValues(service, StatusError).Inc()
		errType := "send"
		if errors.Is(err, context.DeadlineExceeded) {
			errType = "timeout"
		}
		m.deliveryErrors.WithLabelValues(service, errType).Inc()
		return
	}
	m.deliveriesTotal.WithLabelValues(service, StatusSuccess).Inc()
	m.deliveryDuration.WithLabelValues(service).Observe(d.Seconds())
}

// RecordFilterMatch counts a detection that will be alerted on.
func (m *NotificationMetrics) RecordFilterMatch(label string) {
	if m == nil {
		return
	}
	m.filterMatches.WithLabelValues(label).Inc()
}

// RecordFilterRejection counts a detection that was not alerted on.
func (m *NotificationMetrics) RecordFilterRejection(reason string) {
	if m == nil {
		return
	}
	m.filterRejections.WithLabelValues(reason).Inc()
}

// TrackDispatch increments the active dispatch gauge and returns the decrement.
func (m *NotificationMetrics) TrackDispatch() func() {
	if m == nil {
		return func() {}
	}
	m.dispatchActive.Inc()
	return m.dispatchActive.Dec
}

// Collect implements the prometheus.Collector interface.
func (m *NotificationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.deliveriesTotal.Collect(ch)
	m.deliveryDuration.Collect(ch)
	m.deliveryErrors.Collect(ch)
	m.filterMatches.Collect(ch)
	m.filterRejections.Collect(ch)
	ch <- m.dispatchActive
}

// Describe implements the prometheus.Collector interface.
func (m *NotificationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.deliveriesTotal.Describe(ch)
	m.deliveryDuration.Describe(ch)
	m.deliveryErrors.Describe(ch)
	m.filterMatches.Describe(ch)
	m.filterRejections.Describe(ch)
	ch <- m.dispatchActive.Desc()
}
