package classifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brixfix/brixfix-go/internal/conf"
)

// Backend names.
const (
	BackendTFLite = "tflite"
	BackendONNX   = "onnx"
)

// Backend runs the damage model on one preprocessed tensor.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Name identifies the runtime, e.g. "tflite".
	Name() string
	// Run scores a TensorLength NHWC tensor and returns one score per label.
	Run(ctx context.Context, input []float32) ([]float32, error)
	// Close releases the runtime resources.
	Close() error
}

// BackendName resolves the backend for settings: the configured name, or
// the one implied by the model file extension, defaulting to tflite.
func BackendName(settings *conf.ClassifierSettings) string {
	if settings.Backend != "" {
		return strings.ToLower(settings.Backend)
	}
	if strings.EqualFold(filepath.Ext(settings.ModelPath), ".onnx") {
		return BackendONNX
	}
	return BackendTFLite
}

// openBackend loads the model at settings.ModelPath with the resolved runtime.
func openBackend(settings *conf.ClassifierSettings, threads int) (Backend, error) {
	if settings.ModelPath == "" {
		return nil, fmt.Errorf("no model path configured")
	}
	if _, err := os.Stat(settings.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	switch name := BackendName(settings); name {
	case BackendTFLite:
		return newTFLiteBackend(settings, threads)
	case BackendONNX:
		return newONNXBackend(settings, threads)
	default:
		return nil, fmt.Errorf("unsupported backend %q", name)
	}
}
