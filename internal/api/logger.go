package api

import (
	"sync"

	"github.com/brixfix/brixfix-go/internal/logger"
)

var (
	apiLogger    logger.Logger
	accessLogger logger.Logger
	loggerOnce   sync.Once
)

func initLoggers() {
	loggerOnce.Do(func() {
		apiLogger = logger.Global().Module("api")
		accessLogger = logger.Global().Module("access")
	})
}

// GetLogger returns the api module logger.
func GetLogger() logger.Logger {
	initLoggers()
	return apiLogger
}

// getAccessLogger returns the logger for per-request lines, which are
// routed to their own file by default.
func getAccessLogger() logger.Logger {
	initLoggers()
	return accessLogger
}
