// Package privacy scrubs personal data and credentials from text that
// leaves the process: telemetry events, notification errors and logs.
package privacy

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[\w.+-]+@[\w-]+(\.[\w-]+)+`)
	urlQuery     = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	credentials  = regexp.MustCompile(`(?i)(password|passwd|secret|token|api[_-]?key)[=:]\S+`)
	userInfo     = regexp.MustCompile(`([a-z][a-z0-9+.-]*://)[^/@\s]+@`)
)

// ScrubMessage removes e-mail addresses, URL query strings, userinfo and
// inline credentials from message.
func ScrubMessage(message string) string {
	scrubbed := userInfo.ReplaceAllString(message, "$1[REDACTED]@")
	scrubbed = emailPattern.ReplaceAllString(scrubbed, "[EMAIL]")
	scrubbed = urlQuery.ReplaceAllString(scrubbed, "$1?[REDACTED]")
	scrubbed = credentials.ReplaceAllString(scrubbed, "$1=[REDACTED]")
	return scrubbed
}

// MaskEmail keeps the first character of the local part and the domain,
// e.g. "o***@example.com". Strings without an @ are fully masked.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
