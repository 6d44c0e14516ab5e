package notification

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/privacy"
)

// FormatAlert renders the title and body for ev. Label names follow
// locale; the reporter's address is masked.
func FormatAlert(ev detection.Event, locale language.Tag) (title, body string) {
	label := ev.Label.DisplayName(locale)
	title = "BrixFix: " + label

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%.2f%%)\n", label, ev.Confidence)
	fmt.Fprintf(&b, "Detection #%d at %s\n", ev.ID, ev.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Reported by %s", privacy.MaskEmail(ev.Email))
	if ev.ImageName != "" {
		fmt.Fprintf(&b, "\nImage: %s", ev.ImageName)
	}
	return title, b.String()
}
