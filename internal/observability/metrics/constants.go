// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation labels used by the datastore metrics.
const (
	OpRecordDetection  = "record_detection"
	OpListDetections   = "list_detections"
	OpGetImage         = "get_image"
	OpAggregateByLabel = "aggregate_by_label"
	OpUserSummary      = "user_summary"
	OpCreateUser       = "create_user"
	OpGetUser          = "get_user"
	OpMigrate          = "migrate"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Classification outcome label values.
const (
	OutcomeSuccess          = "success"
	OutcomeDecodeError      = "decode_error"
	OutcomeModelUnavailable = "model_unavailable"
	OutcomeInferenceError   = "inference_error"
)

// Cache label values.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// ShutdownTimeout is the timeout for graceful shutdown of the metrics endpoint.
const ShutdownTimeout = 5 * time.Second
