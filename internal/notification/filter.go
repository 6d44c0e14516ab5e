package notification

import (
	"github.com/brixfix/brixfix-go/internal/detection"
)

// Rejection reasons reported by Filter.
const (
	ReasonLabel       = "label"
	ReasonConfidence  = "confidence"
	ReasonRateLimited = "rate_limited"
	ReasonQueueFull   = "queue_full"
)

// Filter selects the detections worth an alert.
type Filter struct {
	labels        map[detection.Label]bool
	minConfidence float64
}

// NewFilter builds a Filter. Unknown label names are ignored; an empty
// list alerts on Severe Damage only.
func NewFilter(labels []string, minConfidence float64) Filter {
	f := Filter{labels: make(map[detection.Label]bool), minConfidence: minConfidence}
	for _, s := range labels {
		if l, err := detection.ParseLabel(s); err == nil {
			f.labels[l] = true
		}
	}
	if len(f.labels) == 0 {
		f.labels[detection.SevereDamage] = true
	}
	return f
}

// Match reports whether ev should be alerted on, and the rejection reason
// when it should not.
func (f Filter) Match(ev detection.Event) (bool, string) {
	if !f.labels[ev.Label] {
		return false, ReasonLabel
	}
	if ev.Confidence < f.minConfidence {
		return false, ReasonConfidence
	}
	return true, ""
}
