package classifier

import (
	"fmt"

	"github.com/brixfix/brixfix-go/internal/errors"
)

// Sentinel errors returned by the classifier. Match them with errors.Is.
var (
	// ErrDecode means the input is not a decodable raster image.
	ErrDecode = errors.NewStd("image cannot be decoded")
	// ErrModelUnavailable means the model failed to load at startup.
	ErrModelUnavailable = errors.NewStd("classification model unavailable")
	// ErrInference means the backend failed while scoring an image.
	ErrInference = errors.NewStd("inference failed")
)

const componentName = "classifier"

// wrap joins sentinel and cause into an enhanced error.
func wrap(sentinel, cause error, category errors.ErrorCategory) *errors.ErrorBuilder {
	var err error
	if cause == nil {
		err = sentinel
	} else {
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return errors.New(err).
		Component(componentName).
		Category(category)
}

func decodeError(cause error) error {
	return wrap(ErrDecode, cause, errors.CategoryImageDecode).
		Priority(errors.PriorityLow).
		Build()
}

func inferenceError(cause error) error {
	return wrap(ErrInference, cause, errors.CategoryInference).Build()
}
