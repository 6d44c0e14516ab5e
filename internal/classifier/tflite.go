package classifier

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/logger"
)

// tfliteBackend runs the model with the TensorFlow Lite C runtime.
type tfliteBackend struct {
	mu          sync.Mutex
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	delegate    delegates.Delegater
	interpreter *tflite.Interpreter
}

func newTFLiteBackend(settings *conf.ClassifierSettings, threads int) (*tfliteBackend, error) {
	modelData, err := os.ReadFile(settings.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, fmt.Errorf("cannot load TensorFlow Lite model")
	}

	b := &tfliteBackend{model: model}
	b.options = tflite.NewInterpreterOptions()

	log := GetLogger()
	if settings.UseXNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // G115: thread count bounded by CPU count
		if delegate == nil {
			log.Warn("failed to create XNNPACK delegate, falling back to default CPU")
			b.options.SetNumThread(threads)
		} else {
			b.delegate = delegate
			b.options.AddDelegate(delegate)
			b.options.SetNumThread(1)
		}
	} else {
		b.options.SetNumThread(threads)
	}

	b.options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("tflite error", logger.String("message", msg))
	}, nil)

	b.interpreter = tflite.NewInterpreter(model, b.options)
	if b.interpreter == nil {
		_ = b.Close()
		return nil, fmt.Errorf("cannot create interpreter")
	}
	if status := b.interpreter.AllocateTensors(); status != tflite.OK {
		_ = b.Close()
		return nil, fmt.Errorf("tensor allocation failed: %v", status)
	}

	input := b.interpreter.GetInputTensor(0)
	if input == nil || len(input.Float32s()) != TensorLength {
		_ = b.Close()
		return nil, fmt.Errorf("model input is not a float32 tensor of %d values", TensorLength)
	}

	// the interpreter holds its own copy of the flatbuffer
	runtime.GC()

	return b, nil
}

func (b *tfliteBackend) Name() string { return BackendTFLite }

// Run copies input into the interpreter, invokes it and returns the last
// output dimension.
func (b *tfliteBackend) Run(_ context.Context, input []float32) ([]float32, error) {
	if len(input) != TensorLength {
		return nil, fmt.Errorf("input has %d values, want %d", len(input), TensorLength)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.interpreter == nil {
		return nil, fmt.Errorf("interpreter closed")
	}

	inputTensor := b.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}
	copy(inputTensor.Float32s(), input)

	if status := b.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	outputTensor := b.interpreter.GetOutputTensor(0)
	if outputTensor == nil {
		return nil, fmt.Errorf("cannot get output tensor")
	}
	size := outputTensor.Dim(outputTensor.NumDims() - 1)
	scores := make([]float32, size)
	copy(scores, outputTensor.Float32s())
	return scores, nil
}

func (b *tfliteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.interpreter != nil {
		b.interpreter.Delete()
		b.interpreter = nil
	}
	if b.delegate != nil {
		b.delegate.Delete()
		b.delegate = nil
	}
	if b.options != nil {
		b.options.Delete()
		b.options = nil
	}
	if b.model != nil {
		b.model.Delete()
		b.model = nil
	}
	return nil
}
