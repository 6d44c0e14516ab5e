// Package analysis wires the classifier, the detection store and the
// event publishers into the serve, classify and stats commands.
package analysis

import (
	"context"

	"github.com/brixfix/brixfix-go/internal/auth"
	"github.com/brixfix/brixfix-go/internal/buildinfo"
	"github.com/brixfix/brixfix-go/internal/classifier"
	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/datastore"
	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/httpclient"
	"github.com/brixfix/brixfix-go/internal/logger"
	"github.com/brixfix/brixfix-go/internal/observability"
)

// Services holds the long-lived components shared by the commands.
type Services struct {
	Settings   *conf.Settings
	Build      *buildinfo.Context
	Metrics    *observability.Metrics
	Store      datastore.Interface
	Classifier *classifier.Classifier
	Auth       *auth.Service

	httpClient *httpclient.Client
}

// OpenStore creates and opens the configured datastore. Open migrates the
// schema.
func OpenStore(settings *conf.Settings, m *observability.Metrics) (datastore.Interface, error) {
	var opts []datastore.Option
	if m != nil {
		opts = append(opts, datastore.WithMetrics(m.Datastore))
	}

	store, err := datastore.New(settings, opts...)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}

// Init builds every service. A model that fails to load is not fatal:
// the classifier reports itself unavailable and the API answers 503.
func Init(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) (*Services, error) {
	if build == nil {
		build = buildinfo.Current()
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategorySystem).
			Context("operation", "init_metrics").
			Build()
	}

	store, err := OpenStore(settings, m)
	if err != nil {
		return nil, err
	}

	client := httpclient.New(&httpclient.Config{UserAgent: build.UserAgent()})
	clf, err := classifier.New(ctx, &settings.Classifier,
		classifier.WithMetrics(m.Classifier),
		classifier.WithHTTPClient(client))
	if err != nil {
		client.Close()
		_ = store.Close()
		return nil, err
	}

	if loadErr := clf.LoadError(); loadErr != nil {
		GetLogger().Error("classification model not loaded, predictions will be rejected",
			logger.String("model_path", settings.Classifier.ModelPath),
			logger.Error(loadErr))
	} else {
		GetLogger().Info("classifier ready",
			logger.String("backend", clf.BackendName()),
			logger.String("model_path", settings.Classifier.ModelPath))
	}

	return &Services{
		Settings:   settings,
		Build:      build,
		Metrics:    m,
		Store:      store,
		Classifier: clf,
		Auth:       auth.NewService(store, settings.Security.BcryptCost),
		httpClient: client,
	}, nil
}

// Close releases the classifier and the database.
func (s *Services) Close() error {
	var errs []error
	if s.Classifier != nil {
		if err := s.Classifier.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.httpClient != nil {
		s.httpClient.Close()
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
