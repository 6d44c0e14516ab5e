package classifier

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/detection"
)

// Default tensor names used when onnx.inputname/outputname are empty.
const (
	defaultONNXInput  = "input"
	defaultONNXOutput = "output"
)

// onnxMu serializes environment setup; onnxruntime has one global environment.
var onnxMu sync.Mutex

// onnxBackend runs the model with onnxruntime using pre-bound tensors.
type onnxBackend struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func newONNXBackend(settings *conf.ClassifierSettings, threads int) (*onnxBackend, error) {
	onnxMu.Lock()
	defer onnxMu.Unlock()

	if !ort.IsInitialized() {
		if settings.ONNX.LibraryPath != "" {
			ort.SetSharedLibraryPath(settings.ONNX.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputName := settings.ONNX.InputName
	if inputName == "" {
		inputName = defaultONNXInput
	}
	outputName := settings.ONNX.OutputName
	if outputName == "" {
		outputName = defaultONNXOutput
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, InputSize, InputSize, Channels))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(detection.Labels))))
	if err != nil {
		_ = inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		_ = inputTensor.Destroy()
		_ = outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()
	if err := options.SetIntraOpNumThreads(threads); err != nil {
		GetLogger().Warn("cannot set onnx intra-op threads")
	}

	session, err := ort.NewAdvancedSession(settings.ModelPath,
		[]string{inputName}, []string{outputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		_ = inputTensor.Destroy()
		_ = outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &onnxBackend{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (b *onnxBackend) Name() string { return BackendONNX }

func (b *onnxBackend) Run(_ context.Context, input []float32) ([]float32, error) {
	if len(input) != TensorLength {
		return nil, fmt.Errorf("input has %d values, want %d", len(input), TensorLength)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil, fmt.Errorf("session closed")
	}

	copy(b.inputTensor.GetData(), input)
	if err := b.session.Run(); err != nil {
		return nil, fmt.Errorf("session run: %w", err)
	}

	data := b.outputTensor.GetData()
	scores := make([]float32, len(data))
	copy(scores, data)
	return scores, nil
}

func (b *onnxBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.session != nil {
		keep(b.session.Destroy())
		b.session = nil
	}
	if b.inputTensor != nil {
		keep(b.inputTensor.Destroy())
		b.inputTensor = nil
	}
	if b.outputTensor != nil {
		keep(b.outputTensor.Destroy())
		b.outputTensor = nil
	}

	onnxMu.Lock()
	defer onnxMu.Unlock()
	if ort.IsInitialized() {
		keep(ort.DestroyEnvironment())
	}
	return firstErr
}
