package analysis

import "github.com/brixfix/brixfix-go/internal/errors"

const componentName = "analysis"

var (
	// ErrAnalysisCanceled is returned when classification is interrupted
	ErrAnalysisCanceled = errors.NewStd("analysis canceled")
	// ErrNoImages is returned when no input path names an image file
	ErrNoImages = errors.NewStd("no image files found")
)
