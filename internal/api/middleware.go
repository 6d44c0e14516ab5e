package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/time/rate"

	"github.com/brixfix/brixfix-go/internal/auth"
	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/logger"
)

// setupMiddleware installs the global middleware chain. Order matters:
// the request id must exist before the access logger reads it.
func (c *Controller) setupMiddleware() {
	e := c.Echo

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(ctx echo.Context, id string) {
			req := ctx.Request()
			ctx.SetRequest(req.WithContext(logger.WithTraceID(req.Context(), id)))
		},
	}))
	e.Use(c.accessLogger())
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10,
		LogErrorFunc: func(ctx echo.Context, err error, stack []byte) error {
			GetLogger().WithContext(ctx.Request().Context()).Error("panic recovered",
				logger.String("path", ctx.Path()),
				logger.Error(err),
				logger.String("stack", string(stack)))
			return err
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: corsOrigins(c.Settings.WebServer.CORSOrigins),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))
	e.Use(middleware.BodyLimit(c.Settings.WebServer.MaxUpload))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "same-origin",
	}))
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// accessLogger writes one line per request to the access module and
// feeds request metrics. Routes are labelled by their pattern, never by
// the raw URI, to keep metric cardinality bounded.
func (c *Controller) accessLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:          true,
		LogStatus:       true,
		LogLatency:      true,
		LogRemoteIP:     true,
		LogMethod:       true,
		LogError:        true,
		LogResponseSize: true,
		LogUserAgent:    true,
		LogRequestID:    true,
		HandleError:     true,
		LogValuesFunc: func(ctx echo.Context, v middleware.RequestLoggerValues) error {
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			c.metrics.RecordRequest(v.Method, route, v.Status, v.ResponseSize, v.Latency)

			fields := []logger.Field{
				logger.String("request_id", v.RequestID),
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.String("route", route),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
				logger.Int64("size", v.ResponseSize),
				logger.String("remote_ip", v.RemoteIP),
				logger.String("user_agent", v.UserAgent),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}

			log := getAccessLogger()
			switch {
			case v.Status >= http.StatusInternalServerError:
				log.Error("request", fields...)
			case v.Status >= http.StatusBadRequest:
				log.Warn("request", fields...)
			default:
				log.Info("request", fields...)
			}
			return nil
		},
	})
}

// loginRateLimiter limits credential endpoints per client address.
func (c *Controller) loginRateLimiter() echo.MiddlewareFunc {
	sec := c.Settings.Security
	limit := rate.Limit(sec.LoginRate)
	if sec.LoginRate <= 0 {
		limit = rate.Inf
	}
	burst := sec.LoginBurst
	if burst <= 0 {
		burst = 1
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      limit,
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			c.metrics.RecordRateLimited(ctx.Path())
			auth.GetLogger().Warn("login rate limited",
				logger.String("remote_ip", identifier),
				logger.String("route", ctx.Path()))
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		},
	})
}

// Start serves HTTP until Shutdown is called. With webserver.autotls the
// server obtains certificates from Let's Encrypt for webserver.host.
func (c *Controller) Start() error {
	ws := c.Settings.WebServer
	log := GetLogger()

	if ws.AutoTLS {
		configPaths, err := conf.GetDefaultConfigPaths()
		if err != nil {
			return err
		}
		c.Echo.AutoTLSManager.Prompt = autocert.AcceptTOS
		c.Echo.AutoTLSManager.Cache = autocert.DirCache(configPaths[0])
		c.Echo.AutoTLSManager.HostPolicy = autocert.HostWhitelist(ws.Host)
		log.Info("starting HTTPS server", logger.String("host", ws.Host))
		return c.Echo.StartAutoTLS(":443")
	}

	log.Info("starting HTTP server", logger.String("listen", ws.Listen))
	return c.Echo.Start(ws.Listen)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.Echo.Shutdown(ctx)
}
