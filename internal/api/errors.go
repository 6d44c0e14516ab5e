package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/brixfix/brixfix-go/internal/auth"
	"github.com/brixfix/brixfix-go/internal/classifier"
	"github.com/brixfix/brixfix-go/internal/datastore"
	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/logger"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // matches the server log line
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
}

// errorStatus maps the error taxonomy onto HTTP status codes. The first
// matching sentinel wins.
var errorStatus = []struct {
	target error
	status int
}{
	{classifier.ErrDecode, http.StatusBadRequest},
	{classifier.ErrModelUnavailable, http.StatusServiceUnavailable},
	{classifier.ErrInference, http.StatusInternalServerError},
	{datastore.ErrInvalidLabel, http.StatusBadRequest},
	{datastore.ErrInvalidConfidence, http.StatusBadRequest},
	{datastore.ErrInvalidIdentity, http.StatusBadRequest},
	{datastore.ErrDetectionNotFound, http.StatusNotFound},
	{datastore.ErrUserNotFound, http.StatusNotFound},
	{auth.ErrMissingFields, http.StatusBadRequest},
	{auth.ErrInvalidEmail, http.StatusBadRequest},
	{auth.ErrPasswordTooShort, http.StatusBadRequest},
	{auth.ErrPasswordTooLong, http.StatusBadRequest},
	{auth.ErrPasswordMismatch, http.StatusBadRequest},
	{auth.ErrEmailTaken, http.StatusConflict},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized},
	{datastore.ErrStorage, http.StatusInternalServerError},
}

// statusFor returns the HTTP status for err and the message safe to show
// the client. Server-side failures get a generic message.
func statusFor(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.target) {
			if e.status >= http.StatusInternalServerError && e.status != http.StatusServiceUnavailable {
				return e.status, publicServerMessage(e.target)
			}
			return e.status, e.target.Error()
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

func publicServerMessage(target error) string {
	switch target {
	case classifier.ErrInference:
		return "classification failed"
	case datastore.ErrStorage:
		return "storage error"
	default:
		return "internal server error"
	}
}

// HandleError logs err with a correlation id and writes the JSON error.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)
	if code >= http.StatusInternalServerError {
		// internal details stay in the log
		resp.Error = message
	}

	log := GetLogger().WithContext(ctx.Request().Context())
	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("path", ctx.Path()),
		logger.Int("code", code),
		logger.String("message", message),
		logger.Error(err),
	}
	if code >= http.StatusInternalServerError {
		log.Error("API error", fields...)
	} else {
		log.Debug("API error", fields...)
	}

	return ctx.JSON(code, resp)
}

// handleDomainError maps err with statusFor and writes it.
func (c *Controller) handleDomainError(ctx echo.Context, err error) error {
	code, message := statusFor(err)
	return c.HandleError(ctx, err, message, code)
}

// httpErrorHandler renders echo errors (unknown routes, body limit,
// rate limit) in the same JSON shape as handler errors.
func (c *Controller) httpErrorHandler(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	if ctx.Request().Method == http.MethodHead {
		_ = ctx.NoContent(code)
		return
	}
	if herr := c.HandleError(ctx, err, message, code); herr != nil {
		GetLogger().Warn("failed to write error response", logger.Error(herr))
	}
}
