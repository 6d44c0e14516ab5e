// Package conf provides configuration management for brixfix.
package conf

import "github.com/brixfix/brixfix-go/internal/logger"

// GetLogger returns the config module logger. It is fetched on every call
// because the central logger is installed after configuration loads.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
