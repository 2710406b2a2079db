package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.pilab.hu/solosso/api"
	"go.pilab.hu/solosso/config"
	"go.pilab.hu/solosso/log"
)

const healthCheckTimeout = 3 * time.Second

// RouteRegistrar mounts a group of handlers on the router.
type RouteRegistrar interface {
	RegisterRoutes(e *echo.Echo)
}

// ReadinessCheck reports an error while a dependency the server needs is
// unreachable.
type ReadinessCheck func(ctx context.Context) error

// NewRouter builds the echo router with recovery, request logging, tracing,
// health and metrics endpoints, and the given API routes. A nil ready check
// makes /healthz always answer ok.
func NewRouter(
	cfg *config.ServerConfig,
	appLogger log.Logger,
	gatherer prometheus.Gatherer,
	ready ReadinessCheck,
	apis ...RouteRegistrar,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.OtelServiceName))
	e.Use(requestLogger(appLogger))

	e.GET("/healthz", healthHandler(appLogger, ready))
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	for _, a := range apis {
		if a == nil {
			appLogger.Error(context.Background(), "Nil API passed to NewRouter, routes not registered", nil)
			continue
		}
		a.RegisterRoutes(e)
	}

	return e
}

// NewHTTPServer wraps the router in an http.Server listening on cfg.HTTPPort.
func NewHTTPServer(cfg *config.ServerConfig, router http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func healthHandler(appLogger log.Logger, ready ReadinessCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
			defer cancel()
			if err := ready(ctx); err != nil {
				appLogger.Warn(ctx, "Health check failed", map[string]interface{}{"error": err.Error()})
				return c.JSON(http.StatusServiceUnavailable, api.HealthResponse{Status: "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
	}
}

func requestLogger(appLogger log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Let echo write the response so the logged status is final.
				c.Error(err)
			}

			req := c.Request()
			fields := map[string]interface{}{
				"method":     req.Method,
				"path":       req.URL.Path,
				"status":     c.Response().Status,
				"latency":    time.Since(start).String(),
				"ip":         c.RealIP(),
				"user_agent": req.UserAgent(),
			}
			if err != nil {
				appLogger.Error(req.Context(), "HTTP Request", err, fields)
			} else {
				appLogger.Info(req.Context(), "HTTP Request", fields)
			}
			return nil
		}
	}
}
