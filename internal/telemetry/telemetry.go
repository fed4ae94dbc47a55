package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Telemetry is a live telemetry pipeline: tracer, meter and logger providers
// sharing one resource.
//
// A trace pipeline failure fails construction. Metric and log pipeline
// failures only mark the handle degraded.
type Telemetry struct {
	config   *Config
	resource *resource.Resource

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider
	gatherer       promclient.Gatherer
	failures       *failureRecorder

	healthy  atomic.Bool
	degraded atomic.Bool

	mu      sync.Mutex
	reasons []string
}

// New builds the telemetry pipeline for cfg without registering it globally.
// cfg.Endpoint must be an http(s) URL.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, err)
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: %w: endpoint is required", ErrConstruction, ErrInvalidEndpoint)
	}

	o := &options{failures: &failureRecorder{}}
	for _, opt := range opts {
		opt(o)
	}

	res, resErr := newResource(ctx, cfg)
	if res == nil {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, resErr)
	}

	t := &Telemetry{
		config:   cfg,
		resource: res,
		failures: o.failures,
	}
	t.healthy.Store(true)
	if resErr != nil {
		t.setDegraded("resource detection incomplete: %v", resErr)
	}

	tp, err := newTracerProvider(ctx, cfg, res, o)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, err)
	}
	t.tracerProvider = tp

	mp, gatherer, err := newMeterProvider(ctx, cfg, res, o)
	if err != nil {
		t.setDegraded("meter provider failed: %v", err)
	} else {
		t.meterProvider = mp
		t.gatherer = gatherer
	}

	lp, err := newLoggerProvider(ctx, cfg, res, o)
	if err != nil {
		t.setDegraded("logger provider failed: %v", err)
	} else {
		t.loggerProvider = lp
	}

	return t, nil
}

// register installs the providers as the process-wide OpenTelemetry globals,
// along with W3C trace context propagation.
func (t *Telemetry) register() {
	if t.tracerProvider != nil {
		otel.SetTracerProvider(t.tracerProvider)
	}
	if t.meterProvider != nil {
		otel.SetMeterProvider(t.meterProvider)
	}
	if t.loggerProvider != nil {
		global.SetLoggerProvider(t.loggerProvider)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// ServiceName returns the service.name the pipeline reports.
func (t *Telemetry) ServiceName() string {
	if t == nil {
		return ""
	}
	if t.resource != nil {
		if v, ok := t.resource.Set().Value(semconv.ServiceNameKey); ok {
			return v.AsString()
		}
	}
	if t.config != nil {
		return t.config.ServiceName
	}
	return ""
}

// Endpoint returns the collector base URL.
func (t *Telemetry) Endpoint() string {
	if t == nil || t.config == nil {
		return ""
	}
	return t.config.Endpoint
}

// Resource returns the resource attached to every signal.
func (t *Telemetry) Resource() *resource.Resource {
	if t == nil {
		return nil
	}
	return t.resource
}

// Tracer returns a tracer for the given instrumentation scope.
//
// Falls back to the global provider, a no-op unless registered, when there is
// no trace pipeline.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if t == nil || t.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return t.tracerProvider.Tracer(name, opts...)
}

// Meter returns a meter for the given instrumentation scope.
//
// Falls back to the global provider when metrics are disabled or degraded.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.meterProvider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return t.meterProvider.Meter(name, opts...)
}

// TracerProvider returns the trace provider, falling back to the global one.
func (t *Telemetry) TracerProvider() oteltrace.TracerProvider {
	if t == nil || t.tracerProvider == nil {
		return otel.GetTracerProvider()
	}
	return t.tracerProvider
}

// MeterProvider returns the meter provider, falling back to the global one.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t == nil || t.meterProvider == nil {
		return otel.GetMeterProvider()
	}
	return t.meterProvider
}

// LoggerProvider returns the log provider for the OTEL logging bridge.
//
// Returns nil when logs are not exported.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil || t.loggerProvider == nil {
		return nil
	}
	return t.loggerProvider
}

// Gatherer returns the registry the prometheus exporter writes to, or nil
// for any other metrics exporter.
func (t *Telemetry) Gatherer() promclient.Gatherer {
	if t == nil {
		return nil
	}
	return t.gatherer
}

// Shutdown flushes and closes all providers.
//
// A ctx without a deadline is bounded by the configured shutdown timeout.
// Export failures during the final flush are returned even though the batch
// processors only report them to otel.Handle.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok && t.config != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ShutdownTimeout.Duration())
		defer cancel()
	}

	if t.failures != nil {
		t.failures.arm()
	}

	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}

	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if t.loggerProvider != nil {
		if err := t.loggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger provider shutdown: %w", err))
		}
	}

	if t.failures != nil {
		errs = appendMissing(errs, t.failures.take())
	}

	t.healthy.Store(false)
	return errors.Join(errs...)
}

// ForceFlush immediately exports all pending telemetry data.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace flush: %w", err))
		}
	}

	if t.meterProvider != nil {
		if err := t.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter flush: %w", err))
		}
	}

	if t.loggerProvider != nil {
		if err := t.loggerProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log flush: %w", err))
		}
	}

	return errors.Join(errs...)
}

// HealthStatus is a snapshot of the pipeline state.
type HealthStatus struct {
	Healthy  bool     `json:"healthy"`
	Degraded bool     `json:"degraded"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Health returns the current telemetry health status.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{Healthy: false, Degraded: true}
	}
	t.mu.Lock()
	reasons := append([]string(nil), t.reasons...)
	t.mu.Unlock()
	return HealthStatus{
		Healthy:  t.healthy.Load(),
		Degraded: t.degraded.Load(),
		Reasons:  reasons,
	}
}

// IsEnabled returns true if the pipeline is live and not shut down.
func (t *Telemetry) IsEnabled() bool {
	if t == nil || t.config == nil {
		return false
	}
	return t.config.Enabled() && t.healthy.Load()
}

// setDegraded marks telemetry as degraded. The reason surfaces in Health.
func (t *Telemetry) setDegraded(format string, args ...interface{}) {
	t.degraded.Store(true)
	t.mu.Lock()
	t.reasons = append(t.reasons, fmt.Sprintf(format, args...))
	t.mu.Unlock()
}
