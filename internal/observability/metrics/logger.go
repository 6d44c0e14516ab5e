// Package metrics provides Prometheus metrics for observability.
package metrics

import "github.com/brixfix/brixfix-go/internal/logger"

// Package-level cached logger instance.
var log = logger.Global().Module("telemetry")
