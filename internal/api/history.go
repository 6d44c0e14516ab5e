package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/brixfix/brixfix-go/internal/datastore"
	"github.com/brixfix/brixfix-go/internal/detection"
)

// DetectionResponse is one history entry.
type DetectionResponse struct {
	ID         uint            `json:"id"`
	Email      string          `json:"email"`
	Label      detection.Label `json:"label"`
	Confidence float64         `json:"confidence"`
	Timestamp  time.Time       `json:"timestamp"`
	ImageName  string          `json:"image_name,omitempty"`
}

func toDetectionResponse(d *datastore.Detection) DetectionResponse {
	resp := DetectionResponse{
		ID:         d.ID,
		Email:      d.Email,
		Label:      d.Label,
		Confidence: roundConfidence(d.Confidence),
		Timestamp:  d.Timestamp,
	}
	if d.ImageName != nil {
		resp.ImageName = *d.ImageName
	}
	return resp
}

// History lists the detections of ?email, newest first.
func (c *Controller) History(ctx echo.Context) error {
	email := strings.TrimSpace(ctx.QueryParam("email"))
	if email == "" {
		return c.HandleError(ctx, nil, "email is required", http.StatusBadRequest)
	}

	records, err := c.DS.ListDetections(ctx.Request().Context(), email)
	if err != nil {
		return c.handleDomainError(ctx, err)
	}

	out := make([]DetectionResponse, 0, len(records))
	for i := range records {
		out = append(out, toDetectionResponse(&records[i]))
	}
	return ctx.JSON(http.StatusOK, out)
}

// Stats returns per-label counts and mean confidence, scoped to ?email
// when given.
func (c *Controller) Stats(ctx echo.Context) error {
	var scope *string
	if email := strings.TrimSpace(ctx.QueryParam("email")); email != "" {
		scope = &email
	}

	stats, err := c.DS.AggregateByLabel(ctx.Request().Context(), scope)
	if err != nil {
		return c.handleDomainError(ctx, err)
	}
	for i := range stats {
		stats[i].MeanConfidence = roundConfidence(stats[i].MeanConfidence)
	}
	return ctx.JSON(http.StatusOK, stats)
}
