// Package metrics provides datastore metrics for observability
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for datastore operations
type DatastoreMetrics struct {
	registry *prometheus.Registry

	dbOperationsTotal      *prometheus.CounterVec
	dbOperationDuration    *prometheus.HistogramVec
	dbOperationErrorsTotal *prometheus.CounterVec

	detectionsRecordedTotal *prometheus.CounterVec
	queryResultSizeHist     *prometheus.HistogramVec

	cacheOperationsTotal *prometheus.CounterVec

	dbConnectionsOpenGauge  prometheus.Gauge
	dbConnectionsInUseGauge prometheus.Gauge
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize datastore metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *DatastoreMetrics) initMetrics() error {
	m.dbOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brixfix_db_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"}, // operation: record_detection, list_detections, ...; status: success, error
	)

	m.dbOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brixfix_db_operation_duration_seconds",
			Help:    "Time taken for database operations",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"operation"},
	)

	m.dbOperationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brixfix_db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation", "error_type"},
	)

	m.detectionsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brixfix_detections_recorded_total",
			Help: "Total number of detection records written",
		},
		[]string{"label", "with_image"},
	)

	m.queryResultSizeHist = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brixfix_db_query_result_size",
			Help:    "Number of rows returned by list queries",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"operation"},
	)

	m.cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brixfix_aggregate_cache_operations_total",
			Help: "Aggregate cache lookups by result",
		},
		[]string{"result"}, // hit, miss
	)

	m.dbConnectionsOpenGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brixfix_db_connections_open",
		Help: "Number of open database connections",
	})

	m.dbConnectionsInUseGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "brixfix_db_connections_in_use",
		Help: "Number of database connections currently in use",
	})

	return nil
}

// RecordOperation records the outcome and duration of one datastore operation.
func (m *DatastoreMetrics) RecordOperation(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.dbOperationsTotal.WithLabelValues(operation, StatusError).Inc()
		m.dbOperationErrorsTotal.WithLabelValues(operation, categorizeDBError(err)).Inc()
		return
	}
	m.dbOperationsTotal.WithLabelValues(operation, StatusSuccess).Inc()
	m.dbOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordDetection counts a committed detection.
func (m *DatastoreMetrics) RecordDetection(label string, withImage bool) {
	if m == nil {
		return
	}
	m.detectionsRecordedTotal.WithLabelValues(label, fmt.Sprint(withImage)).Inc()
}

// ObserveResultSize records the number of rows a query returned.
func (m *DatastoreMetrics) ObserveResultSize(operation string, rows int) {
	if m == nil {
		return
	}
	m.queryResultSizeHist.WithLabelValues(operation).Observe(float64(rows))
}

// RecordCache records an aggregate cache hit or miss.
func (m *DatastoreMetrics) RecordCache(result string) {
	if m == nil {
		return
	}
	m.cacheOperationsTotal.WithLabelValues(result).Inc()
}

// UpdateConnections sets the connection pool gauges.
func (m *DatastoreMetrics) UpdateConnections(open, inUse int) {
	if m == nil {
		return
	}
	m.dbConnectionsOpenGauge.Set(float64(open))
	m.dbConnectionsInUseGauge.Set(float64(inUse))
}

// Describe implements the prometheus.Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.dbOperationsTotal.Describe(ch)
	m.dbOperationDuration.Describe(ch)
	m.dbOperationErrorsTotal.Describe(ch)
	m.detectionsRecordedTotal.Describe(ch)
	m.queryResultSizeHist.Describe(ch)
	m.cacheOperationsTotal.Describe(ch)
	ch <- m.dbConnectionsOpenGauge.Desc()
	ch <- m.dbConnectionsInUseGauge.Desc()
}

// Collect implements the prometheus.Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.dbOperationsTotal.Collect(ch)
	m.dbOperationDuration.Collect(ch)
	m.dbOperationErrorsTotal.Collect(ch)
	m.detectionsRecordedTotal.Collect(ch)
	m.queryResultSizeHist.Collect(ch)
	m.cacheOperationsTotal.Collect(ch)
	ch <- m.dbConnectionsOpenGauge
	ch <- m.dbConnectionsInUseGauge
}
