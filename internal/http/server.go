// Package http hosts the front-end on echo with request tracing, metrics and
// request logging.
//
// Self-monitoring endpoints (/health, /metrics, /favicon.ico) are served but
// never traced or counted.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/frontend/internal/logging"
	"github.com/fyrsmithlabs/frontend/internal/telemetry"
)

// Server provides the front-end HTTP endpoints.
type Server struct {
	echo        *echo.Echo
	config      *Config
	logger      *logging.Logger
	tel         *telemetry.Telemetry
	serviceName string
	ignore      func(path string) bool
	metrics     *HTTPMetrics
}

// Option configures a Server.
type Option func(*Server)

// WithTelemetry sets the pipeline used for spans, metrics and /metrics.
// Without it the global OpenTelemetry providers are used.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(s *Server) {
		s.tel = tel
	}
}

// WithServiceName sets the service reported by /health.
func WithServiceName(name string) Option {
	return func(s *Server) {
		s.serviceName = name
	}
}

// WithIgnore replaces telemetry.ShouldIgnore as the filter for requests
// that get no span and no metrics.
func WithIgnore(ignore func(path string) bool) Option {
	return func(s *Server) {
		if ignore != nil {
			s.ignore = ignore
		}
	}
}

// NewServer creates a new HTTP server.
func NewServer(cfg *Config, logger *logging.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	s := &Server{
		config: cfg,
		logger: logger.Named("http"),
		ignore: telemetry.ShouldIgnore,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.serviceName == "" {
		s.serviceName = s.tel.ServiceName()
	}
	if s.serviceName == "" {
		s.serviceName = telemetry.DefaultServiceName
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s.echo = e

	s.metrics = NewHTTPMetrics(s.tel.Meter(instrumentationName), s.logger, s.ignore)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(tracingMiddleware(s.tel.TracerProvider(), s.tel.MeterProvider(), s.ignore))
	e.Use(routeSpanMiddleware())
	e.Use(s.metrics.Middleware())
	e.Use(requestLogger(s.logger, s.ignore))

	s.registerRoutes()

	return s, nil
}

// requestLogger logs one line per request with trace correlation. Handler
// errors are written to the response here so that the span, the metrics and
// the log line all see the final status.
func requestLogger(logger *logging.Logger, ignore func(path string) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			if ignore(req.URL.Path) {
				logger.Debug(req.Context(), "http request", fields...)
			} else {
				logger.Info(req.Context(), "http request", fields...)
			}

			return err
		}
	}
}

// registerRoutes sets up the self-monitoring endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler()))
	s.echo.GET("/favicon.ico", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string          `json:"status"`
	Service   string          `json:"service"`
	Telemetry TelemetryStatus `json:"telemetry"`
}

// TelemetryStatus reports the pipeline state. Telemetry problems never make
// the service itself unhealthy.
type TelemetryStatus struct {
	Enabled  bool     `json:"enabled"`
	Healthy  bool     `json:"healthy"`
	Degraded bool     `json:"degraded"`
	Reasons  []string `json:"reasons,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{
		Status:  "ok",
		Service: s.serviceName,
	}
	if s.tel != nil {
		health := s.tel.Health()
		resp.Telemetry = TelemetryStatus{
			Enabled:  s.tel.IsEnabled(),
			Healthy:  health.Healthy,
			Degraded: health.Degraded,
			Reasons:  health.Reasons,
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// metricsHandler serves the prometheus exporter's registry when there is one,
// and the default registry otherwise.
func (s *Server) metricsHandler() http.Handler {
	if gatherer := s.tel.Gatherer(); gatherer != nil {
		return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// Start serves until ctx is cancelled or the server is shut down, and
// returns http.ErrServerClosed after a clean stop.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Addr()
	s.logger.Info(ctx, "starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return http.ErrServerClosed
		}
		return fmt.Errorf("server start: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout.Duration())
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Shutdown gracefully shuts down the server, letting in-flight requests
// finish until ctx expires. It fits telemetry.Lifecycle.BeforeTeardown.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance for registering application
// routes. Routes added here get the full middleware chain.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
