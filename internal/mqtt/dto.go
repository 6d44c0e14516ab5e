package mqtt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/brixfix/brixfix-go/internal/detection"
)

// emailHashLength is the number of hex characters kept from the digest.
const emailHashLength = 16

// DetectionMessage is the JSON payload published for every stored
// detection. Field names are part of the published contract.
type DetectionMessage struct {
	DetectionID uint      `json:"detection_id"`
	EmailHash   string    `json:"email_hash"`
	Label       string    `json:"label"`
	Confidence  float64   `json:"confidence"`
	Severe      bool      `json:"severe"`
	Timestamp   time.Time `json:"timestamp"`
	ImageName   string    `json:"image_name,omitempty"`
}

// NewDetectionMessage converts ev into its published form.
func NewDetectionMessage(ev detection.Event) DetectionMessage {
	return DetectionMessage{
		DetectionID: ev.ID,
		EmailHash:   HashEmail(ev.Email),
		Label:       ev.Label.String(),
		Confidence:  ev.Confidence,
		Severe:      ev.Severe(),
		Timestamp:   ev.Timestamp.UTC(),
		ImageName:   ev.ImageName,
	}
}

// Marshal encodes the message as JSON.
func (m DetectionMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// HashEmail returns a stable pseudonym for email: a prefix of the SHA-256
// of its trimmed lowercase form.
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])[:emailHashLength]
}
