package datastore

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/logger"
	"github.com/brixfix/brixfix-go/internal/observability/metrics"
)

// imageNamePrefix is prepended to the detection ID to name stored images.
const imageNamePrefix = "img_"

// ImageName returns the stored image name for a detection ID.
func ImageName(id uint) string {
	return fmt.Sprintf("%s%d", imageNamePrefix, id)
}

// NormalizeEmail returns the identity key for email: trimmed and lower-cased,
// so that every engine groups records the same way regardless of collation.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateNewDetection checks in without touching the database.
func validateNewDetection(in *NewDetection) error {
	in.Email = NormalizeEmail(in.Email)
	if in.Email == "" {
		return validationError(ErrInvalidIdentity, "email", "")
	}
	label, err := detection.ParseLabel(string(in.Label))
	if err != nil {
		return validationError(ErrInvalidLabel, "label", in.Label)
	}
	in.Label = label
	if math.IsNaN(in.Confidence) || in.Confidence < 0 || in.Confidence > 100 {
		return validationError(ErrInvalidConfidence, "confidence", in.Confidence)
	}
	return nil
}

// RecordDetection validates and stores one detection. When image data is
// present the row and its ID-derived image name are written in a single
// transaction. Rejected inputs write nothing.
func (ds *DataStore) RecordDetection(ctx context.Context, in NewDetection) (rec *Detection, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpRecordDetection, start, err) }()

	if err := validateNewDetection(&in); err != nil {
		return nil, err
	}

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = ds.now()
	}

	rec = &Detection{
		Email:      in.Email,
		Label:      in.Label,
		Confidence: in.Confidence,
		Timestamp:  ts.UTC(),
	}
	withImage := len(in.ImageData) > 0

	if withImage {
		rec.ImageData = in.ImageData
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(rec).Error; err != nil {
				return err
			}
			name := ImageName(rec.ID)
			if err := tx.Model(rec).Update("image_name", name).Error; err != nil {
				return err
			}
			rec.ImageName = &name
			return nil
		})
	} else {
		err = db.Create(rec).Error
	}
	if err != nil {
		return nil, dbError(err, "insert_detection", errors.PriorityHigh,
			"label", string(in.Label), "with_image", withImage)
	}

	rec.HasImage = rec.ImageName != nil
	rec.ImageData = nil

	ds.cache.invalidate()
	ds.metrics.RecordDetection(string(rec.Label), withImage)

	GetLogger().Debug("detection recorded",
		logger.Uint64("id", uint64(rec.ID)),
		logger.String("label", rec.Label.String()),
		logger.Float64("confidence", rec.Confidence),
		logger.Bool("with_image", withImage))

	ds.runHooks(ctx, rec.event())
	return rec, nil
}

// ListDetections returns every detection of email, newest first. Image
// bytes are not loaded; HasImage tells whether one is stored.
func (ds *DataStore) ListDetections(ctx context.Context, email string) (out []Detection, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpListDetections, start, err) }()

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}

	out = make([]Detection, 0)
	err = db.Model(&Detection{}).
		Select("id", "email", "label", "confidence", "timestamp", "image_name").
		Where("email = ?", NormalizeEmail(email)).
		Order("timestamp DESC").
		Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, dbError(err, "list_detections", errors.PriorityMedium)
	}

	for i := range out {
		out[i].HasImage = out[i].ImageName != nil
	}
	ds.metrics.ObserveResultSize(metrics.OpListDetections, len(out))
	return out, nil
}

// GetDetectionImage returns the stored image of detection id when it
// belongs to email.
func (ds *DataStore) GetDetectionImage(ctx context.Context, email string, id uint) (data []byte, err error) {
	start := time.Now()
	defer func() { ds.observe(metrics.OpGetImage, start, err) }()

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}

	var rec Detection
	err = db.Select("id", "image_data").
		Where("id = ? AND email = ?", id, NormalizeEmail(email)).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError(ErrDetectionNotFound, "detection_image")
	}
	if err != nil {
		return nil, dbError(err, "get_detection_image", errors.PriorityMedium)
	}
	if len(rec.ImageData) == 0 {
		return nil, notFoundError(ErrDetectionNotFound, "detection_image")
	}
	return rec.ImageData, nil
}
