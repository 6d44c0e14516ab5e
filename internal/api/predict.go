package api

import (
	"context"
	"math"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/brixfix/brixfix-go/internal/auth"
	"github.com/brixfix/brixfix-go/internal/classifier"
	"github.com/brixfix/brixfix-go/internal/datastore"
	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/logger"
)

// PredictResponse is returned by POST /predict.
type PredictResponse struct {
	Label      detection.Label `json:"label"`
	Confidence float64         `json:"confidence"`
}

// Predict classifies one uploaded image and records the detection for
// the submitted email.
func (c *Controller) Predict(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return c.HandleError(ctx, err, "no file part in the request", http.StatusBadRequest)
	}
	if fh.Filename == "" {
		return c.HandleError(ctx, nil, "no file selected", http.StatusBadRequest)
	}

	email := strings.TrimSpace(ctx.FormValue("email"))
	if email == "" {
		return c.HandleError(ctx, nil, "email is required", http.StatusBadRequest)
	}
	if !auth.ValidEmail(email) {
		return c.HandleError(ctx, nil, "invalid email address", http.StatusBadRequest)
	}

	if !isImageUpload(fh) {
		return c.HandleError(ctx, nil, "file must be an image", http.StatusBadRequest)
	}

	rec, err := c.classifyUpload(ctx.Request().Context(), email, fh)
	if err != nil {
		return c.handleDomainError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, PredictResponse{
		Label:      rec.Label,
		Confidence: roundConfidence(rec.Confidence),
	})
}

func isImageUpload(fh *multipart.FileHeader) bool {
	return strings.HasPrefix(strings.ToLower(fh.Header.Get(echo.HeaderContentType)), "image/")
}

func roundConfidence(v float64) float64 {
	return math.Round(v*100) / 100
}

// classifyUpload runs one uploaded file through decode, inference and
// storage. Model availability is checked before the upload is read.
func (c *Controller) classifyUpload(ctx context.Context, email string, fh *multipart.FileHeader) (*datastore.Detection, error) {
	if err := c.classifier.Available(); err != nil {
		return nil, err
	}
	c.metrics.ObserveUpload(fh.Size)

	if err := c.inference.Acquire(ctx, 1); err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryCancellation).
			Context("operation", "acquire_inference_slot").
			Build()
	}
	defer c.inference.Release(1)

	src, err := fh.Open()
	if err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			Context("operation", "open_upload").
			Build()
	}
	defer src.Close()

	img, format, err := c.classifier.DecodeImage(src)
	if err != nil {
		return nil, err
	}

	result, err := c.classifier.ClassifyImage(ctx, img)
	if err != nil {
		return nil, err
	}

	in := datastore.NewDetection{
		Email:      email,
		Label:      result.Label,
		Confidence: result.Confidence,
	}
	if c.Settings.WebServer.StoreImages {
		data, err := classifier.EncodePNG(img)
		if err != nil {
			return nil, err
		}
		in.ImageData = data
	}

	rec, err := c.DS.RecordDetection(ctx, in)
	if err != nil {
		return nil, err
	}

	GetLogger().WithContext(ctx).Info("detection recorded",
		logger.Uint64("detection_id", uint64(rec.ID)),
		logger.String("label", rec.Label.String()),
		logger.Float64("confidence", rec.Confidence),
		logger.String("format", format),
		logger.Int64("upload_bytes", fh.Size))
	return rec, nil
}
