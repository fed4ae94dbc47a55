// internal/logging/config.go
package logging

import (
	"fmt"
)

// Config holds logging configuration.
type Config struct {
	Level      string            `koanf:"level" yaml:"level"`
	Format     string            `koanf:"format" yaml:"format"`
	Output     OutputConfig      `koanf:"output" yaml:"output"`
	Caller     bool              `koanf:"caller" yaml:"caller"`
	Stacktrace string            `koanf:"stacktrace" yaml:"stacktrace"`
	Fields     map[string]string `koanf:"fields" yaml:"fields"`
}

// OutputConfig controls where logs are written.
type OutputConfig struct {
	Stdout bool `koanf:"stdout" yaml:"stdout"`
	OTEL   bool `koanf:"otel" yaml:"otel"`
}

// NewDefaultConfig returns config with production-ready defaults.
//
// OTEL output is on, but only takes effect when a LoggerProvider is handed
// to NewLogger, i.e. when telemetry is configured with a logs exporter.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "json",
		Output: OutputConfig{
			Stdout: true,
			OTEL:   true,
		},
		Caller:     true,
		Stacktrace: "error",
		Fields: map[string]string{
			"service": "front-end",
		},
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if _, err := LevelFromString(c.Level); err != nil {
		return fmt.Errorf("invalid level %q: %w", c.Level, err)
	}
	if c.Stacktrace != "" {
		if _, err := LevelFromString(c.Stacktrace); err != nil {
			return fmt.Errorf("invalid stacktrace level %q: %w", c.Stacktrace, err)
		}
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Output.Stdout && !c.Output.OTEL {
		return fmt.Errorf("at least one output must be enabled (stdout or otel)")
	}

	for k, v := range c.Fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}

	return nil
}
