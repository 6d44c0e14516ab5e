package datastore

import (
	"time"

	"github.com/brixfix/brixfix-go/internal/detection"
)

// Detection is one stored classification.
type Detection struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Email      string          `gorm:"size:255;not null;index:idx_detections_email_timestamp,priority:1" json:"email"`
	Label      detection.Label `gorm:"size:32;not null;index" json:"label"`
	Confidence float64         `gorm:"not null" json:"confidence"`
	Timestamp  time.Time       `gorm:"not null;index:idx_detections_email_timestamp,priority:2" json:"timestamp"`
	ImageName  *string         `gorm:"size:64;uniqueIndex" json:"image_name,omitempty"`
	ImageData  []byte          `json:"-"`

	// HasImage is derived from ImageName; ImageData is not loaded by list queries.
	HasImage bool `gorm:"-" json:"has_image"`
}

// TableName pins the table name used by both dialects.
func (Detection) TableName() string { return "detections" }

// NewDetection is the input to RecordDetection.
type NewDetection struct {
	Email      string
	Label      detection.Label
	Confidence float64
	Timestamp  time.Time // zero uses the store clock
	ImageData  []byte    // optional encoded image
}

// User is a registered dashboard account.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName pins the table name used by both dialects.
func (User) TableName() string { return "users" }

// LabelStats aggregates detections for one label.
type LabelStats struct {
	Label          detection.Label `json:"label"`
	Count          int64           `json:"count"`
	MeanConfidence float64         `json:"mean_confidence"`
}

// Summary is the statistics view for one user.
type Summary struct {
	Email          string          `json:"email"`
	Total          int64           `json:"total"`
	MeanConfidence float64         `json:"mean_confidence"`
	MostCommon     detection.Label `json:"most_common,omitempty"`
	Labels         []LabelStats    `json:"labels"`
}

// event converts a stored detection to the hook payload.
func (d *Detection) event() detection.Event {
	ev := detection.Event{
		ID:         d.ID,
		Email:      d.Email,
		Label:      d.Label,
		Confidence: d.Confidence,
		Timestamp:  d.Timestamp,
	}
	if d.ImageName != nil {
		ev.ImageName = *d.ImageName
	}
	return ev
}
