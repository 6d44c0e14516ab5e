package datastore

import (
	"github.com/brixfix/brixfix-go/internal/observability/metrics"
)

// Metrics is the datastore view of the observability metrics.
type Metrics = metrics.DatastoreMetrics
