package analysis

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brixfix/brixfix-go/internal/api"
	"github.com/brixfix/brixfix-go/internal/buildinfo"
	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/logger"
	"github.com/brixfix/brixfix-go/internal/mqtt"
	"github.com/brixfix/brixfix-go/internal/notification"
	"github.com/brixfix/brixfix-go/internal/observability"
	"github.com/brixfix/brixfix-go/internal/telemetry"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	sentryFlushTimeout     = 2 * time.Second
)

// Serve runs the web server, the metrics endpoint and the detection
// publishers until ctx is cancelled or SIGINT/SIGTERM arrives. SIGHUP
// reopens the log files.
func Serve(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if build == nil {
		build = buildinfo.Current()
	}
	log := GetLogger()
	log.Info("starting brixfix", logger.String("version", build.GetVersion()))

	if settings.Sentry.Enabled {
		if err := telemetry.InitSentry(&settings.Sentry, build); err != nil {
			log.Warn("error reporting disabled", logger.Error(err))
		} else {
			defer telemetry.Flush(sentryFlushTimeout)
		}
	}

	svc, err := Init(ctx, settings, build)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error("failed to close services", logger.Error(err))
		}
	}()

	stopPublishers, err := startPublishers(ctx, svc)
	if err != nil {
		return err
	}
	defer stopPublishers()

	ctrl, err := api.New(settings, svc.Store, svc.Classifier, svc.Auth,
		api.WithMetrics(svc.Metrics.HTTP),
		api.WithBuildInfo(build))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := ctrl.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.New(err).
				Component(componentName).
				Category(errors.CategoryNetwork).
				Context("operation", "http_serve").
				Build()
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := settings.WebServer.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		log.Info("shutting down web server", logger.Duration("timeout", timeout))
		return ctrl.Shutdown(shutdownCtx)
	})

	if settings.Telemetry.Enabled {
		endpoint, err := observability.NewEndpoint(settings, svc.Metrics)
		if err != nil {
			return err
		}
		g.Go(func() error { return endpoint.Run(gctx) })
	}

	g.Go(func() error {
		watchLogRotation(gctx)
		return nil
	})

	err = g.Wait()
	log.Info("brixfix stopped")
	return err
}

// startPublishers registers the MQTT and notification hooks that are
// enabled and returns a function stopping them.
func startPublishers(ctx context.Context, svc *Services) (func(), error) {
	settings := svc.Settings
	var stops []func()
	stopAll := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if settings.MQTT.Enabled {
		cfg := mqtt.ConfigFromSettings(&settings.MQTT)
		pub := mqtt.NewPublisher(mqtt.NewClient(cfg, svc.Metrics.MQTT), cfg.Topic, svc.Metrics.MQTT, 0)
		pub.Start(ctx)
		stops = append(stops, pub.Stop)
		svc.Store.AddDetectionHook(pub.Handle)
		GetLogger().Info("mqtt publishing enabled", logger.String("topic", cfg.Topic))
	}

	if settings.Notification.Enabled {
		sender, err := notification.NewShoutrrrSender(settings.Notification.URLs, settings.Notification.Timeout)
		if err != nil {
			stopAll()
			return nil, err
		}
		n := notification.NewNotifier(&settings.Notification, sender,
			notification.WithMetrics(svc.Metrics.Notification),
			notification.WithLocale(detection.MatchLocale(settings.Dashboard.Locale)))
		n.Start(ctx)
		stops = append(stops, n.Stop)
		svc.Store.AddDetectionHook(n.Handle)
		GetLogger().Info("severe damage notifications enabled",
			logger.Int("services", len(settings.Notification.URLs)))
	}

	return stopAll, nil
}

// watchLogRotation reopens log files on SIGHUP, as sent by logrotate.
func watchLogRotation(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := logger.Global().Rotate(); err != nil {
				GetLogger().Error("log rotation failed", logger.Error(err))
				continue
			}
			GetLogger().Info("log files reopened")
		}
	}
}
