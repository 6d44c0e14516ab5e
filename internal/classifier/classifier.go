// Package classifier turns building photographs into damage severity
// results. It owns decoding, preprocessing, the model runtime and the
// mapping of scores to labels.
package classifier

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/cpuspec"
	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/httpclient"
	"github.com/brixfix/brixfix-go/internal/logger"
	"github.com/brixfix/brixfix-go/internal/observability/metrics"
)

// Classifier scores images with a loaded model. The model is loaded once
// by New; if that fails the Classifier stays usable and every call returns
// ErrModelUnavailable. Safe for concurrent use.
type Classifier struct {
	settings  conf.ClassifierSettings
	backend   Backend
	name      string
	loadErr   error
	resample  resampleFunc
	maxPixels int
	metrics   *metrics.ClassifierMetrics
	client    *httpclient.Client

	closeOnce sync.Once
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithBackend uses b instead of loading a model from disk.
func WithBackend(b Backend) Option {
	return func(c *Classifier) {
		c.backend = b
	}
}

// WithMetrics records classification metrics into m.
func WithMetrics(m *metrics.ClassifierMetrics) Option {
	return func(c *Classifier) {
		c.metrics = m
	}
}

// WithHTTPClient sets the client used to download a missing model.
func WithHTTPClient(client *httpclient.Client) Option {
	return func(c *Classifier) {
		c.client = client
	}
}

// WithMaxPixels overrides DefaultMaxPixels.
func WithMaxPixels(n int) Option {
	return func(c *Classifier) {
		c.maxPixels = n
	}
}

// New creates a Classifier and attempts to load the model exactly once.
// It only returns an error for invalid settings; model load failures are
// kept and reported by Ready and by every Classify call.
func New(ctx context.Context, settings *conf.ClassifierSettings, opts ...Option) (*Classifier, error) {
	if settings == nil {
		return nil, errors.Newf("classifier settings must not be nil").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}

	resample, err := resamplerFor(settings.Resampler)
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}

	c := &Classifier{
		settings:  *settings,
		resample:  resample,
		maxPixels: DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.backend != nil {
		c.name = c.backend.Name()
		c.metrics.RecordModelLoad(c.name, nil)
		return c, nil
	}

	c.name = BackendName(settings)
	c.load(ctx)
	return c, nil
}

// load fetches the model when needed and opens the backend.
func (c *Classifier) load(ctx context.Context) {
	start := time.Now()
	log := GetLogger()

	err := EnsureModel(ctx, c.client, c.settings.ModelPath, c.settings.ModelURL, c.settings.ModelSHA256)
	if err == nil {
		threads := cpuspec.GetCPUSpec().ThreadCount(c.settings.Threads)
		c.backend, err = openBackend(&c.settings, threads)
		if err == nil {
			log.Info("model loaded",
				logger.String("backend", c.name),
				logger.String("model", c.settings.ModelPath),
				logger.Int("threads", threads),
				logger.Bool("xnnpack", c.settings.UseXNNPACK && c.name == BackendTFLite),
				logger.Duration("elapsed", time.Since(start)))
		}
	}

	c.metrics.RecordModelLoad(c.name, err)
	if err != nil {
		c.loadErr = wrap(ErrModelUnavailable, err, errors.CategoryModelInit).
			Priority(errors.PriorityCritical).
			ModelContext(c.settings.ModelPath, c.name).
			Timing("model-load", time.Since(start)).
			Build()
		log.Error("model unavailable, classification requests will fail",
			logger.String("backend", c.name),
			logger.Error(err))
	}
}

// Ready reports whether the model is loaded.
func (c *Classifier) Ready() bool {
	return c.loadErr == nil && c.backend != nil
}

// LoadError returns the remembered model load error, or nil.
func (c *Classifier) LoadError() error {
	return c.loadErr
}

// BackendName returns the runtime name, e.g. "tflite".
func (c *Classifier) BackendName() string {
	return c.name
}

// DecodeImage decodes r with this classifier's pixel limit.
func (c *Classifier) DecodeImage(r io.Reader) (image.Image, string, error) {
	return DecodeImage(r, c.maxPixels)
}

// Classify decodes an encoded image from r and classifies it.
func (c *Classifier) Classify(ctx context.Context, r io.Reader) (detection.Result, error) {
	if err := c.available(); err != nil {
		c.metrics.RecordClassification(c.name, metrics.OutcomeModelUnavailable, "", 0)
		return detection.Result{}, err
	}

	img, _, err := c.DecodeImage(r)
	if err != nil {
		c.metrics.RecordClassification(c.name, metrics.OutcomeDecodeError, "", 0)
		return detection.Result{}, err
	}
	return c.ClassifyImage(ctx, img)
}

// ClassifyImage classifies an already decoded image.
func (c *Classifier) ClassifyImage(ctx context.Context, img image.Image) (detection.Result, error) {
	start := time.Now()

	result, err := c.classify(ctx, img)
	c.metrics.RecordClassification(c.name, outcomeOf(err), string(result.Label), time.Since(start))
	if err != nil {
		return detection.Result{}, err
	}

	GetLogger().Debug("image classified",
		logger.String("label", result.Label.String()),
		logger.Float64("confidence", result.Confidence),
		logger.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (c *Classifier) classify(ctx context.Context, img image.Image) (detection.Result, error) {
	if err := c.available(); err != nil {
		return detection.Result{}, err
	}

	defer c.metrics.TrackActive()()

	input, err := Preprocess(img, c.resample)
	if err != nil {
		if errors.Is(err, ErrDecode) {
			return detection.Result{}, err
		}
		return detection.Result{}, inferenceError(err)
	}

	if c.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.settings.Timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return detection.Result{}, inferenceError(err)
	}

	scores, err := c.backend.Run(ctx, input)
	if err != nil {
		return detection.Result{}, inferenceError(err)
	}
	return toResult(scores)
}

// Available returns nil when the model is loaded, otherwise an error
// wrapping ErrModelUnavailable.
func (c *Classifier) Available() error {
	return c.available()
}

func (c *Classifier) available() error {
	if c.loadErr != nil {
		return c.loadErr
	}
	if c.backend == nil {
		return wrap(ErrModelUnavailable, fmt.Errorf("classifier closed"), errors.CategoryState).Build()
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrDecode):
		return metrics.OutcomeDecodeError
	case errors.Is(err, ErrModelUnavailable):
		return metrics.OutcomeModelUnavailable
	default:
		return metrics.OutcomeInferenceError
	}
}

// Close releases the backend. Calls after the first are no-ops.
func (c *Classifier) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.backend != nil {
			err = c.backend.Close()
		}
	})
	return err
}
