package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// tracingMiddleware starts the server span for every request that ignore
// does not exclude. Excluded requests pass through without any span.
func tracingMiddleware(tp trace.TracerProvider, mp metric.MeterProvider, ignore func(string) bool) echo.MiddlewareFunc {
	return echo.WrapMiddleware(otelhttp.NewMiddleware("http.server",
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithMeterProvider(mp),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !ignore(r.URL.Path)
		}),
		// Renamed to "METHOD route" once echo has matched the route.
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method
		}),
	))
}

// routeSpanMiddleware names the server span after the matched route so that
// span names stay low-cardinality.
func routeSpanMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			span := trace.SpanFromContext(c.Request().Context())
			if !span.IsRecording() {
				return next(c)
			}

			if route := c.Path(); route != "" {
				span.SetName(c.Request().Method + " " + route)
				span.SetAttributes(semconv.HTTPRoute(route))
			}

			err := next(c)
			if err != nil {
				span.RecordError(err)
			}
			return err
		}
	}
}
