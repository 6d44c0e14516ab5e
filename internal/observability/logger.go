package observability

import "github.com/brixfix/brixfix-go/internal/logger"

var log = logger.Global().Module("telemetry")
