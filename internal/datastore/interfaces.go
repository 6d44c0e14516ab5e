// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/logger"
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Engine() string

	RecordDetection(ctx context.Context, in NewDetection) (*Detection, error)
	ListDetections(ctx context.Context, email string) ([]Detection, error)
	GetDetectionImage(ctx context.Context, email string, id uint) ([]byte, error)
	AggregateByLabel(ctx context.Context, email *string) ([]LabelStats, error)
	UserSummary(ctx context.Context, email string) (Summary, error)

	CreateUser(ctx context.Context, email, passwordHash string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	AddDetectionHook(hook DetectionHook)
}

// DetectionHook runs after a detection has been committed. Hooks must not
// block; long work belongs on the hook's own goroutine.
type DetectionHook func(ctx context.Context, ev detection.Event)

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB       *gorm.DB // GORM database instance
	Settings conf.DatastoreSettings
	Debug    bool

	metrics *Metrics
	cache   *aggregateCache
	now     func() time.Time

	hooksMu sync.RWMutex
	hooks   []DetectionHook
}

// Option configures a DataStore.
type Option func(*DataStore)

// WithMetrics records operation metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(ds *DataStore) {
		ds.metrics = m
	}
}

// WithClock replaces time.Now for default timestamps.
func WithClock(now func() time.Time) Option {
	return func(ds *DataStore) {
		ds.now = now
	}
}

func newDataStore(settings *conf.Settings, opts ...Option) DataStore {
	ds := DataStore{
		Settings: settings.Datastore,
		Debug:    settings.Debug,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&ds)
	}
	ds.cache = newAggregateCache(settings.Datastore.CacheTTL, ds.metrics)
	return ds
}

// New creates the store selected by settings. The returned store must be
// opened with Open before use.
func New(settings *conf.Settings, opts ...Option) (Interface, error) {
	switch {
	case settings.Datastore.SQLite.Enabled:
		return &SQLiteStore{DataStore: newDataStore(settings, opts...)}, nil
	case settings.Datastore.MySQL.Enabled:
		return &MySQLStore{DataStore: newDataStore(settings, opts...)}, nil
	default:
		return nil, errors.Newf("no datastore enabled, enable datastore.sqlite or datastore.mysql").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// AddDetectionHook registers hook for every committed detection.
func (ds *DataStore) AddDetectionHook(hook DetectionHook) {
	if hook == nil {
		return
	}
	ds.hooksMu.Lock()
	defer ds.hooksMu.Unlock()
	ds.hooks = append(ds.hooks, hook)
}

// runHooks calls every hook. A panicking hook is logged and skipped.
func (ds *DataStore) runHooks(ctx context.Context, ev detection.Event) {
	ds.hooksMu.RLock()
	hooks := make([]DetectionHook, len(ds.hooks))
	copy(hooks, ds.hooks)
	ds.hooksMu.RUnlock()

	for _, hook := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					GetLogger().Error("detection hook panicked",
						logger.Any("panic", r),
						logger.String("stack", string(debug.Stack())))
				}
			}()
			hook(ctx, ev)
		}()
	}
}

func (ds *DataStore) db(ctx context.Context) (*gorm.DB, error) {
	if ds.DB == nil {
		return nil, errors.New(ErrNotOpen).
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}
	return ds.DB.WithContext(ctx), nil
}

// observe records the outcome of one operation.
func (ds *DataStore) observe(operation string, start time.Time, err error) {
	ds.metrics.RecordOperation(operation, time.Since(start), err)
}
