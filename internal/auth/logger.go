package auth

import "github.com/brixfix/brixfix-go/internal/logger"

// GetLogger returns the logger for credential events. The auth module is
// routed to its own file by default.
func GetLogger() logger.Logger {
	return logger.Global().Module("auth")
}
