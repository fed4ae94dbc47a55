package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/frontend/internal/config"
	"github.com/fyrsmithlabs/frontend/internal/logging"
	"github.com/fyrsmithlabs/frontend/internal/telemetry"
)

func setupTestServer(t *testing.T, opts ...Option) (*Server, *telemetry.TestTelemetry, *logging.TestLogger) {
	t.Helper()

	tel := telemetry.NewTestTelemetry()
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })
	logger := logging.NewTestLogger()

	opts = append([]Option{WithTelemetry(tel.Telemetry)}, opts...)
	s, err := NewServer(nil, logger.Logger, opts...)
	require.NoError(t, err)

	s.Echo().GET("/api/orders", func(c echo.Context) error {
		return c.JSON(http.StatusOK, []string{"order-1"})
	})
	s.Echo().GET("/api/orders/:id", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
	})
	s.Echo().GET("/api/teapot", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})

	return s, tel, logger
}

func do(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("uses defaults when config is nil", func(t *testing.T) {
		s, err := NewServer(nil, logging.NewNop())
		require.NoError(t, err)
		assert.Equal(t, DefaultPort, s.config.Port)
		assert.Equal(t, telemetry.DefaultServiceName, s.serviceName)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		_, err := NewServer(&Config{Port: 70000, ShutdownTimeout: config.Duration(time.Second)}, logging.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server config")
	})

	t.Run("service name from telemetry", func(t *testing.T) {
		s, _, _ := setupTestServer(t)
		assert.Equal(t, telemetry.DefaultServiceName, s.serviceName)
	})

	t.Run("explicit service name wins", func(t *testing.T) {
		s, _, _ := setupTestServer(t, WithServiceName("custom-service"))
		assert.Equal(t, "custom-service", s.serviceName)
	})
}

func TestHandleHealth(t *testing.T) {
	s, _, _ := setupTestServer(t)

	rec := do(s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, telemetry.DefaultServiceName, resp.Service)
	assert.True(t, resp.Telemetry.Enabled)
	assert.True(t, resp.Telemetry.Healthy)
	assert.False(t, resp.Telemetry.Degraded)
}

func TestHandleHealth_WithoutTelemetry(t *testing.T) {
	s, err := NewServer(nil, logging.NewNop())
	require.NoError(t, err)

	rec := do(s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Telemetry.Enabled)
}

func TestFavicon(t *testing.T) {
	s, _, _ := setupTestServer(t)
	rec := do(s, http.MethodGet, "/favicon.ico")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIgnoredPathsProduceNoSpans(t *testing.T) {
	for _, path := range []string{"/health", "/metrics", "/favicon.ico"} {
		t.Run(path, func(t *testing.T) {
			s, tel, _ := setupTestServer(t)

			rec := do(s, http.MethodGet, path)
			assert.Less(t, rec.Code, 300)
			assert.Empty(t, tel.SpanNames())
		})
	}
}

func TestRouteSpans(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantSpan  string
		wantRoute string
	}{
		{"static route", "/api/orders", "GET /api/orders", "/api/orders"},
		{"parameterized route", "/api/orders/42", "GET /api/orders/:id", "/api/orders/:id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, tel, _ := setupTestServer(t)

			rec := do(s, http.MethodGet, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)

			require.Equal(t, []string{tt.wantSpan}, tel.SpanNames())
			tel.AssertSpanAttribute(t, tt.wantSpan, "http.route", tt.wantRoute)
			assert.Equal(t, trace.SpanKindServer, tel.SpanByName(tt.wantSpan).SpanKind())
		})
	}
}

func TestErrorStatusReachesSpanMetricsAndLogs(t *testing.T) {
	s, tel, logger := setupTestServer(t)

	rec := do(s, http.MethodGet, "/api/teapot")
	assert.Equal(t, http.StatusTeapot, rec.Code)

	tel.AssertSpanAttribute(t, "GET /api/teapot", "http.response.status_code", int64(http.StatusTeapot))

	rm, err := tel.Collect(context.Background())
	require.NoError(t, err)
	got, ok := telemetry.FindMetric(rm, "frontend.http.requests_total")
	require.True(t, ok)
	sum := got.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	status, _ := sum.DataPoints[0].Attributes.Value(attribute.Key("status"))
	assert.Equal(t, int64(http.StatusTeapot), status.AsInt64())

	logger.AssertField(t, "http request", "status", int64(http.StatusTeapot))
}

func TestMetricsOnlyForTracedRoutes(t *testing.T) {
	s, tel, _ := setupTestServer(t)

	do(s, http.MethodGet, "/health")
	do(s, http.MethodGet, "/api/orders")

	rm, err := tel.Collect(context.Background())
	require.NoError(t, err)

	got, ok := telemetry.FindMetric(rm, "frontend.http.requests_total")
	require.True(t, ok)
	sum := got.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)

	route, _ := sum.DataPoints[0].Attributes.Value(attribute.Key("route"))
	assert.Equal(t, "/api/orders", route.AsString())
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
}

func TestWithIgnore(t *testing.T) {
	cfg := telemetry.NewDefaultConfig()
	cfg.IgnoredPaths = []string{"/api/orders"}

	s, tel, _ := setupTestServer(t, WithIgnore(cfg.ShouldIgnore))

	do(s, http.MethodGet, "/api/orders")
	do(s, http.MethodGet, "/health")

	assert.Equal(t, []string{"GET /health"}, tel.SpanNames())
}

func TestRequestLogging(t *testing.T) {
	t.Run("logs with request id and trace correlation", func(t *testing.T) {
		s, _, logger := setupTestServer(t)

		rec := do(s, http.MethodGet, "/api/orders")
		requestID := rec.Header().Get(echo.HeaderXRequestID)
		require.NotEmpty(t, requestID)

		logger.AssertLogged(t, zapcore.InfoLevel, "http request")
		logger.AssertField(t, "http request", "request.id", requestID)
		logger.AssertField(t, "http request", "route", "/api/orders")
		logger.AssertTraceCorrelation(t, "http request")
	})

	t.Run("keeps incoming request id", func(t *testing.T) {
		s, _, logger := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.Header.Set(echo.HeaderXRequestID, "upstream-123")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		assert.Equal(t, "upstream-123", rec.Header().Get(echo.HeaderXRequestID))
		logger.AssertField(t, "http request", "request.id", "upstream-123")
	})

	t.Run("ignored paths log at debug", func(t *testing.T) {
		s, _, logger := setupTestServer(t)

		do(s, http.MethodGet, "/health")

		logger.AssertLogged(t, zapcore.DebugLevel, "http request")
		logger.AssertNotLogged(t, zapcore.InfoLevel, "http request")
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("serves the prometheus exporter registry", func(t *testing.T) {
		cfg := telemetry.NewDefaultConfig()
		cfg.Endpoint = "http://localhost:4318"
		cfg.MetricsExporter = telemetry.ExporterPrometheus
		cfg.LogsExporter = telemetry.ExporterNone

		tel, err := telemetry.New(context.Background(), cfg,
			telemetry.WithTraceExporter(tracetest.NewInMemoryExporter()),
		)
		require.NoError(t, err)
		t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

		counter, err := tel.Meter("test").Int64Counter("orders_placed")
		require.NoError(t, err)
		counter.Add(context.Background(), 3)

		s, err := NewServer(nil, logging.NewNop(), WithTelemetry(tel))
		require.NoError(t, err)

		rec := do(s, http.MethodGet, "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "orders_placed")
	})

	t.Run("falls back to the default registry", func(t *testing.T) {
		s, _, _ := setupTestServer(t)

		rec := do(s, http.MethodGet, "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "go_goroutines")
	})
}

func TestServerLifecycle(t *testing.T) {
	newListeningServer := func(t *testing.T) (*Server, chan error, context.CancelFunc) {
		t.Helper()

		cfg := &Config{Host: "127.0.0.1", Port: 0, ShutdownTimeout: config.Duration(2 * time.Second)}
		s, err := NewServer(cfg, logging.NewNop())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx)
		}()

		require.Eventually(t, func() bool {
			return s.Echo().ListenerAddr() != nil
		}, 2*time.Second, 10*time.Millisecond)

		return s, errCh, cancel
	}

	t.Run("serves until context cancelled", func(t *testing.T) {
		s, errCh, cancel := newListeningServer(t)

		resp, err := http.Get("http://" + s.Echo().ListenerAddr().String() + "/health")
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.Contains(string(body), `"status":"ok"`))

		cancel()
		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, http.ErrServerClosed)
		case <-time.After(3 * time.Second):
			t.Fatal("server did not stop")
		}
	})

	t.Run("shutdown stops start", func(t *testing.T) {
		s, errCh, cancel := newListeningServer(t)
		defer cancel()

		require.NoError(t, s.Shutdown(context.Background()))
		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, http.ErrServerClosed)
		case <-time.After(3 * time.Second):
			t.Fatal("server did not stop")
		}
	})

	t.Run("start fails when port is taken", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		cfg := &Config{
			Host:            "127.0.0.1",
			Port:            ln.Addr().(*net.TCPAddr).Port,
			ShutdownTimeout: config.Duration(time.Second),
		}
		s, err := NewServer(cfg, logging.NewNop())
		require.NoError(t, err)

		err = s.Start(context.Background())
		require.Error(t, err)
		assert.False(t, errors.Is(err, http.ErrServerClosed))
		assert.Contains(t, err.Error(), "server start")
	})
}
