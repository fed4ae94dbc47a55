// Package telemetry provides OpenTelemetry instrumentation for the front-end.
package telemetry

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/frontend/internal/config"
)

// DefaultServiceName identifies the service when OTEL_SERVICE_NAME is unset.
const DefaultServiceName = "front-end"

// Protocols accepted by Config.Protocol.
const (
	ProtocolHTTP = "http/protobuf"
	ProtocolGRPC = "grpc"
)

// Exporter names accepted by the *Exporter fields.
const (
	ExporterOTLP       = "otlp"
	ExporterConsole    = "console"
	ExporterPrometheus = "prometheus"
	ExporterNone       = "none"
)

// Config holds telemetry configuration.
//
// An empty Endpoint disables telemetry entirely. Only the console and
// prometheus exporters work without one, and they are opt-in.
type Config struct {
	Endpoint        string          `koanf:"endpoint" yaml:"endpoint"`
	ServiceName     string          `koanf:"service_name" yaml:"service_name"`
	ServiceVersion  string          `koanf:"service_version" yaml:"service_version"`
	Protocol        string          `koanf:"protocol" yaml:"protocol"`
	TLSSkipVerify   bool            `koanf:"tls_skip_verify" yaml:"tls_skip_verify"`
	TracesExporter  string          `koanf:"traces_exporter" yaml:"traces_exporter"`
	MetricsExporter string          `koanf:"metrics_exporter" yaml:"metrics_exporter"`
	LogsExporter    string          `koanf:"logs_exporter" yaml:"logs_exporter"`
	SampleRate      float64         `koanf:"sample_rate" yaml:"sample_rate"`
	MetricsInterval config.Duration `koanf:"metrics_interval" yaml:"metrics_interval"`
	ShutdownTimeout config.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`

	// RetryOnFailure leaves Initialize eligible for another attempt after a
	// construction failure. When false the first failure is final.
	RetryOnFailure bool `koanf:"retry_on_failure" yaml:"retry_on_failure"`

	// IgnoredPaths overrides the request path prefixes excluded from tracing.
	// Empty means IgnoredPaths().
	IgnoredPaths []string `koanf:"ignored_paths" yaml:"ignored_paths"`
}

// NewDefaultConfig returns production-ready telemetry defaults.
// Telemetry stays disabled until an endpoint is configured.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:        "",
		ServiceName:     DefaultServiceName,
		ServiceVersion:  "0.1.0",
		Protocol:        ProtocolHTTP,
		TracesExporter:  ExporterOTLP,
		MetricsExporter: ExporterOTLP,
		LogsExporter:    ExporterNone,
		SampleRate:      1.0,
		MetricsInterval: config.Duration(15 * time.Second),
		ShutdownTimeout: config.Duration(5 * time.Second),
		RetryOnFailure:  true,
	}
}

// Enabled reports whether an endpoint is configured.
func (c *Config) Enabled() bool {
	return c != nil && strings.TrimSpace(c.Endpoint) != ""
}

// Validate checks configuration for errors.
// A disabled config only needs its timeouts and exporter names to make sense.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("%w: sample_rate must be between 0 and 1, got %f", ErrInvalidConfig, c.SampleRate)
	}

	switch c.Protocol {
	case "", ProtocolHTTP, ProtocolGRPC:
	default:
		return fmt.Errorf("%w: protocol must be %q or %q, got %q", ErrInvalidConfig, ProtocolHTTP, ProtocolGRPC, c.Protocol)
	}

	if err := validateExporter("traces_exporter", c.TracesExporter, ExporterOTLP, ExporterConsole, ExporterNone); err != nil {
		return err
	}
	if err := validateExporter("metrics_exporter", c.MetricsExporter, ExporterOTLP, ExporterPrometheus, ExporterConsole, ExporterNone); err != nil {
		return err
	}
	if err := validateExporter("logs_exporter", c.LogsExporter, ExporterOTLP, ExporterNone); err != nil {
		return err
	}

	if c.MetricsExporter != ExporterNone && c.MetricsInterval.Duration() <= 0 {
		return fmt.Errorf("%w: metrics_interval must be positive when metrics are exported", ErrInvalidConfig)
	}

	if c.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("%w: shutdown_timeout must be positive", ErrInvalidConfig)
	}

	for _, p := range c.IgnoredPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: ignored path %q must start with /", ErrInvalidConfig, p)
		}
	}

	if c.Enabled() {
		if _, err := parseEndpoint(c.Endpoint); err != nil {
			return err
		}
	}

	return nil
}

// ShouldIgnore reports whether requests to path are excluded from tracing,
// using IgnoredPaths when set and the package defaults otherwise.
func (c *Config) ShouldIgnore(path string) bool {
	if c == nil || len(c.IgnoredPaths) == 0 {
		return ShouldIgnore(path)
	}
	return hasAnyPrefix(path, c.IgnoredPaths)
}

// withDefaults returns a copy with empty fields filled in.
func (c *Config) withDefaults() *Config {
	if c == nil {
		return NewDefaultConfig()
	}
	out := *c
	out.Endpoint = strings.TrimRight(strings.TrimSpace(out.Endpoint), "/")
	if out.ServiceName == "" {
		out.ServiceName = DefaultServiceName
	}
	if out.Protocol == "" {
		out.Protocol = ProtocolHTTP
	}
	if out.TracesExporter == "" {
		out.TracesExporter = ExporterOTLP
	}
	if out.MetricsExporter == "" {
		out.MetricsExporter = ExporterOTLP
	}
	if out.LogsExporter == "" {
		out.LogsExporter = ExporterNone
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = config.Duration(5 * time.Second)
	}
	if out.MetricsInterval <= 0 {
		out.MetricsInterval = config.Duration(15 * time.Second)
	}
	return &out
}

func validateExporter(field, value string, allowed ...string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %s, got %q", ErrInvalidConfig, field, strings.Join(allowed, ", "), value)
}

// parseEndpoint accepts an http(s) collector base URL.
func parseEndpoint(endpoint string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidEndpoint, endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q: scheme must be http or https", ErrInvalidEndpoint, endpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q: missing host", ErrInvalidEndpoint, endpoint)
	}
	return u, nil
}
