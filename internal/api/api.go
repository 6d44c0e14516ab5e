// Package api serves the REST API and the server-rendered dashboard.
package api

import (
	"context"
	"image"
	"io"
	"runtime"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/semaphore"

	"github.com/brixfix/brixfix-go/internal/auth"
	"github.com/brixfix/brixfix-go/internal/buildinfo"
	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/datastore"
	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/observability/metrics"
)

// Classifier is the inference adapter used by the handlers.
type Classifier interface {
	Ready() bool
	Available() error
	BackendName() string
	DecodeImage(r io.Reader) (image.Image, string, error)
	ClassifyImage(ctx context.Context, img image.Image) (detection.Result, error)
}

// Authenticator registers and logs in users.
type Authenticator interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*datastore.User, error)
	Authenticate(ctx context.Context, email, password string) (*datastore.User, error)
}

// memoryFunc reports host memory for the health endpoint.
type memoryFunc func(ctx context.Context) (*mem.VirtualMemoryStat, error)

// Controller owns the echo instance and every route.
type Controller struct {
	Echo     *echo.Echo
	DS       datastore.Interface
	Settings *conf.Settings

	classifier Classifier
	auth       Authenticator
	metrics    *metrics.HTTPMetrics
	build      *buildinfo.Context
	sessions   sessions.Store
	views      *TemplateRenderer
	memory     memoryFunc

	// bounds concurrent decode + inference work
	inference   *semaphore.Weighted
	concurrency int
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithMetrics records request, auth, upload and template metrics.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithBuildInfo sets the version reported by /health.
func WithBuildInfo(b *buildinfo.Context) Option {
	return func(c *Controller) { c.build = b }
}

// WithSessionStore replaces the cookie session store.
func WithSessionStore(store sessions.Store) Option {
	return func(c *Controller) { c.sessions = store }
}

// WithConcurrency overrides classifier.maxconcurrent.
func WithConcurrency(n int) Option {
	return func(c *Controller) { c.concurrency = n }
}

func withMemoryFunc(f memoryFunc) Option {
	return func(c *Controller) { c.memory = f }
}

// New creates the controller and registers all routes.
func New(settings *conf.Settings, ds datastore.Interface, clf Classifier, authSvc Authenticator, opts ...Option) (*Controller, error) {
	c := &Controller{
		Echo:        echo.New(),
		DS:          ds,
		Settings:    settings,
		classifier:  clf,
		auth:        authSvc,
		memory:      mem.VirtualMemoryWithContext,
		concurrency: settings.Classifier.MaxConcurrent,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.build == nil {
		c.build = buildinfo.Current()
	}
	if c.concurrency <= 0 {
		c.concurrency = runtime.NumCPU()
	}
	c.inference = semaphore.NewWeighted(int64(c.concurrency))

	if c.sessions == nil {
		c.sessions = newCookieStore(&settings.Security)
	}

	views, err := NewTemplateRenderer(c.metrics)
	if err != nil {
		return nil, err
	}
	c.views = views

	c.Echo.HideBanner = true
	c.Echo.HidePort = true
	c.Echo.Renderer = views
	c.Echo.HTTPErrorHandler = c.httpErrorHandler

	c.setupMiddleware()
	c.initRoutes()
	return c, nil
}

func (c *Controller) initRoutes() {
	c.Echo.GET("/", c.Root)
	c.Echo.GET("/health", c.Health)

	limiter := c.loginRateLimiter()
	c.Echo.POST("/register", c.Register, limiter)
	c.Echo.POST("/login", c.Login, limiter)

	c.Echo.POST("/predict", c.Predict)
	c.Echo.GET("/history", c.History)
	c.Echo.GET("/stats", c.Stats)

	if c.Settings.Dashboard.Enabled {
		c.initDashboardRoutes(limiter)
	}
}

// requestTimeout bounds datastore calls made by the health check.
const requestTimeout = 2 * time.Second
