// Package metrics provides HTTP handler metrics for observability
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics contains Prometheus metrics for the web server
type HTTPMetrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	authOperationsTotal    *prometheus.CounterVec
	rateLimitedTotal       *prometheus.CounterVec
	uploadSizeBytes        prometheus.Histogram
	templateRenderDuration *prometheus.HistogramVec
	templateRenderErrors   *prometheus.CounterVec
}

// NewHTTPMetrics creates and registers new HTTP handler metrics
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize HTTP metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *HTTPMetrics) initMetrics() error {
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brixfix_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"}, // path is the route pattern, not the raw URL
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brixfix_http_request_duration_seconds",
			Help:    "Time taken for HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brixfix_http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10),
		},
		[]string{"method", "path"},
	)

	m.authOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brixfix_auth_operations_total",
			Help: "Total number of registration and login attempts",
		},
		[]string{"operation", "status"}, // operation: register, login; status: success, failure
	)

	m.rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brixfix_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"path"},
	)

	m.uploadSizeBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "brixfix_upload_size_bytes",
		Help:    "Size of uploaded images in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 9), // 1KiB to 64MiB
	})

	m.templateRenderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brixfix_template_render_duration_seconds",
			Help:    "Time taken to render dashboard templates",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
		[]string{"template"},
	)

	m.templateRenderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brixfix_template_render_errors_total",
			Help: "Total number of template rendering errors",
		},
		[]string{"template"},
	)

	return nil
}

// RecordRequest records one served request.
func (m *HTTPMetrics) RecordRequest(method, path string, status int, size int64, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
	m.httpResponseSize.WithLabelValues(method, path).Observe(float64(size))
}

// RecordAuth records a register or login attempt.
func (m *HTTPMetrics) RecordAuth(operation string, success bool) {
	if m == nil {
		return
	}
	status := "failure"
	if success {
		status = StatusSuccess
	}
	m.authOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordRateLimited counts a rejected request.
func (m *HTTPMetrics) RecordRateLimited(path string) {
	if m == nil {
		return
	}
	m.rateLimitedTotal.WithLabelValues(path).Inc()
}

// ObserveUpload records an uploaded file size.
func (m *HTTPMetrics) ObserveUpload(size int64) {
	if m == nil {
		return
	}
	m.uploadSizeBytes.Observe(float64(size))
}

// RecordTemplateRender records a dashboard template render.
func (m *HTTPMetrics) RecordTemplateRender(name string, d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.templateRenderErrors.WithLabelValues(name).Inc()
		return
	}
	m.templateRenderDuration.WithLabelValues(name).Observe(d.Seconds())
}

// Describe implements the prometheus.Collector interface
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.httpRequestsTotal.Describe(ch)
	m.httpRequestDuration.Describe(ch)
	m.httpResponseSize.Describe(ch)
	m.authOperationsTotal.Describe(ch)
	m.rateLimitedTotal.Describe(ch)
	ch <- m.uploadSizeBytes.Desc()
	m.templateRenderDuration.Describe(ch)
	m.templateRenderErrors.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	m.httpRequestsTotal.Collect(ch)
	m.httpRequestDuration.Collect(ch)
	m.httpResponseSize.Collect(ch)
	m.authOperationsTotal.Collect(ch)
	m.rateLimitedTotal.Collect(ch)
	ch <- m.uploadSizeBytes
	m.templateRenderDuration.Collect(ch)
	m.templateRenderErrors.Collect(ch)
}
