package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials"
)

// OTLP/HTTP signal paths appended to the collector base URL.
const (
	tracesPath  = "/v1/traces"
	metricsPath = "/v1/metrics"
	logsPath    = "/v1/logs"
)

// Option overrides parts of the pipeline built by New.
type Option func(*options)

type options struct {
	traceExporter sdktrace.SpanExporter
	metricReader  sdkmetric.Reader
	logExporter   sdklog.Exporter

	failures *failureRecorder
}

// WithTraceExporter replaces the configured span exporter.
func WithTraceExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) {
		o.traceExporter = exp
	}
}

// WithMetricReader replaces the configured metric reader.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) {
		o.metricReader = r
	}
}

// WithLogExporter replaces the configured log exporter.
func WithLogExporter(exp sdklog.Exporter) Option {
	return func(o *options) {
		o.logExporter = exp
	}
}

// newResource describes the service. Environment attributes
// (OTEL_RESOURCE_ATTRIBUTES) are detected first so that the configured
// service name and version win.
func newResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		// Detectors can fail partially; res then still holds what was found.
		return res, fmt.Errorf("creating resource: %w", err)
	}
	return res, nil
}

// newSampler maps the configured ratio onto a parent-based sampler so that
// upstream sampling decisions propagate.
func newSampler(rate float64) sdktrace.Sampler {
	var sampler sdktrace.Sampler
	switch {
	case rate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case rate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(sampler)
}

// newTracerProvider creates a TracerProvider that batches spans to the
// configured exporter. The "none" exporter keeps a provider so spans still
// carry IDs for log correlation.
func newTracerProvider(ctx context.Context, cfg *Config, res *resource.Resource, o *options) (*sdktrace.TracerProvider, error) {
	exporter := o.traceExporter
	if exporter == nil {
		var err error
		exporter, err = newTraceExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SampleRate)),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(&spanExporter{
			SpanExporter: exporter,
			failures:     o.failures,
		}))
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

func newTraceExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)

	switch cfg.TracesExporter {
	case ExporterNone:
		return nil, nil
	case ExporterConsole:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
	default:
		if cfg.Protocol == ProtocolGRPC {
			opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpointURL(cfg.Endpoint)}
			if tlsCfg := cfg.tlsConfig(); tlsCfg != nil {
				opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlsCfg)))
			}
			exporter, err = otlptracegrpc.New(ctx, opts...)
		} else {
			opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(cfg.Endpoint + tracesPath)}
			if tlsCfg := cfg.tlsConfig(); tlsCfg != nil {
				opts = append(opts, otlptracehttp.WithTLSClientConfig(tlsCfg))
			}
			exporter, err = otlptracehttp.New(ctx, opts...)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	return exporter, nil
}

// newMeterProvider creates a MeterProvider for the configured exporter.
// Returns a nil provider and gatherer when metrics are disabled. The
// gatherer is only set for the prometheus exporter.
func newMeterProvider(ctx context.Context, cfg *Config, res *resource.Resource, o *options) (*sdkmetric.MeterProvider, promclient.Gatherer, error) {
	reader := o.metricReader
	var gatherer promclient.Gatherer

	if reader == nil {
		switch cfg.MetricsExporter {
		case ExporterNone:
			return nil, nil, nil
		case ExporterPrometheus:
			// A private registry keeps repeated initialization (tests, retries)
			// from colliding on the default registerer.
			reg := promclient.NewRegistry()
			exp, err := prometheus.New(prometheus.WithRegisterer(reg))
			if err != nil {
				return nil, nil, fmt.Errorf("creating prometheus exporter: %w", err)
			}
			reader, gatherer = exp, reg
		default:
			exp, err := newMetricExporter(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			reader = sdkmetric.NewPeriodicReader(exp,
				sdkmetric.WithInterval(cfg.MetricsInterval.Duration()),
			)
		}
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	return mp, gatherer, nil
}

func newMetricExporter(ctx context.Context, cfg *Config) (sdkmetric.Exporter, error) {
	if cfg.MetricsExporter == ExporterConsole {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
		if err != nil {
			return nil, fmt.Errorf("creating stdout metric exporter: %w", err)
		}
		return exp, nil
	}

	// Cumulative temporality for Prometheus-compatible backends. This
	// overrides OTEL_EXPORTER_OTLP_METRICS_TEMPORALITY_PREFERENCE.
	cumulative := func(sdkmetric.InstrumentKind) metricdata.Temporality {
		return metricdata.CumulativeTemporality
	}

	var (
		exp sdkmetric.Exporter
		err error
	)
	if cfg.Protocol == ProtocolGRPC {
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpointURL(cfg.Endpoint),
			otlpmetricgrpc.WithTemporalitySelector(cumulative),
		}
		if tlsCfg := cfg.tlsConfig(); tlsCfg != nil {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(tlsCfg)))
		}
		exp, err = otlpmetricgrpc.New(ctx, opts...)
	} else {
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpointURL(cfg.Endpoint + metricsPath),
			otlpmetrichttp.WithTemporalitySelector(cumulative),
		}
		if tlsCfg := cfg.tlsConfig(); tlsCfg != nil {
			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(tlsCfg))
		}
		exp, err = otlpmetrichttp.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	return exp, nil
}

// newLoggerProvider creates the LoggerProvider behind the otelzap bridge.
// Only OTLP/HTTP is supported for logs.
func newLoggerProvider(ctx context.Context, cfg *Config, res *resource.Resource, o *options) (*sdklog.LoggerProvider, error) {
	exporter := o.logExporter
	if exporter == nil {
		if cfg.LogsExporter != ExporterOTLP {
			return nil, nil
		}
		opts := []otlploghttp.Option{otlploghttp.WithEndpointURL(cfg.Endpoint + logsPath)}
		if tlsCfg := cfg.tlsConfig(); tlsCfg != nil {
			opts = append(opts, otlploghttp.WithTLSClientConfig(tlsCfg))
		}
		var err error
		exporter, err = otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating log exporter: %w", err)
		}
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(&logExporter{
			Exporter: exporter,
			failures: o.failures,
		})),
	), nil
}

// tlsConfig returns a config that skips verification when requested,
// or nil to keep the exporter defaults.
func (c *Config) tlsConfig() *tls.Config {
	if !c.TLSSkipVerify {
		return nil
	}
	return &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // User explicitly requested
	}
}
