package detection

import "time"

// Result is the outcome of classifying one image.
type Result struct {
	Label      Label
	Confidence float64   // percentage in [0, 100]
	Scores     []float32 // raw model output in label order
}

// Event describes a stored detection for downstream publishers.
type Event struct {
	ID         uint
	Email      string
	Label      Label
	Confidence float64
	Timestamp  time.Time
	ImageName  string // empty when no image was stored
}

// Severe reports whether the event carries the most severe label.
func (e Event) Severe() bool {
	return e.Label == SevereDamage
}
