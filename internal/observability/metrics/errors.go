package metrics

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/brixfix/brixfix-go/internal/errors"
)

// categorizeDBError returns a low-cardinality label for a datastore error.
func categorizeDBError(err error) string {
	if err == nil {
		return "none"
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	var enhanced *apperrors.EnhancedError
	if errors.As(err, &enhanced) {
		switch enhanced.GetCategory() {
		case string(apperrors.CategoryValidation):
			return "validation"
		case string(apperrors.CategoryConflict):
			return "conflict"
		case string(apperrors.CategoryNotFound):
			return "not_found"
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "locked"), strings.Contains(msg, "busy"):
		return "locked"
	case strings.Contains(msg, "constraint"), strings.Contains(msg, "duplicate"):
		return "constraint"
	case strings.Contains(msg, "connection"):
		return "connection"
	default:
		return "unknown"
	}
}
