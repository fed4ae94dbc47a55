// Package config provides configuration loading for the front-end.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every front-end specific environment variable.
	EnvPrefix = "FRONTEND_"
)

// ErrConfigFileTooLarge is returned for config files above the 1MB cap.
var ErrConfigFileTooLarge = errors.New("config file too large")

// standardEnvKeys maps well-known environment variables onto config keys.
// OpenTelemetry variables keep their standard names so that the service
// behaves like any other OTel SDK consumer.
var standardEnvKeys = map[string]string{
	"OTEL_EXPORTER_OTLP_ENDPOINT":             "telemetry.endpoint",
	"OTEL_SERVICE_NAME":                       "telemetry.service_name",
	"OTEL_SERVICE_VERSION":                    "telemetry.service_version",
	"OTEL_EXPORTER_OTLP_PROTOCOL":             "telemetry.protocol",
	"OTEL_EXPORTER_OTLP_INSECURE_SKIP_VERIFY": "telemetry.tls_skip_verify",
	"OTEL_TRACES_EXPORTER":                    "telemetry.traces_exporter",
	"OTEL_METRICS_EXPORTER":                   "telemetry.metrics_exporter",
	"OTEL_LOGS_EXPORTER":                      "telemetry.logs_exporter",
	"OTEL_TRACES_SAMPLER_ARG":                 "telemetry.sample_rate",
	"OTEL_METRIC_EXPORT_INTERVAL":             "telemetry.metrics_interval",
	"PORT":                                    "server.port",
}

// LoadWithFile overlays configuration onto out, which must be a pointer to a
// struct already populated with defaults. Fields are matched by koanf tags.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (OTEL_* standard names, FRONTEND_<SECTION>_<FIELD>)
//  2. YAML config file at configPath, if configPath is non-empty
//  3. The defaults already present in out
//
// # Environment Variable Mapping
//
// Empty variables are treated as unset. Standard variables use a fixed table
// (see EnvKey). Front-end variables split on the first underscore after the
// prefix:
//
//	FRONTEND_SERVER_PORT              -> server.port
//	FRONTEND_TELEMETRY_RETRY_ON_FAILURE -> telemetry.retry_on_failure
//	FRONTEND_LOGGING_LEVEL            -> logging.level
//
// # Example
//
//	cfg := newDefaultAppConfig()
//	if err := config.LoadWithFile("/etc/frontend/config.yaml", cfg); err != nil {
//	    log.Fatal(err)
//	}
func LoadWithFile(configPath string, out any) error {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return err
		}

		// Use rawbytes provider to avoid re-opening the file
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.Unmarshal("", out); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

// EnvKey maps an environment variable name to a config key.
// Returns "" for variables that are not configuration, which koanf skips.
func EnvKey(name string) string {
	if key, ok := standardEnvKeys[name]; ok {
		return key
	}

	if !strings.HasPrefix(name, EnvPrefix) {
		return ""
	}

	// Strategy: split on first underscore only (section.field_name pattern)
	lower := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}

	return parts[0] + "." + parts[1]
}

// envValue drops empty variables so that an exported-but-empty variable
// behaves like an unset one.
func envValue(name, value string) (string, interface{}) {
	if value == "" {
		return "", nil
	}
	return EnvKey(name), value
}

// readConfigFile reads a config file, validating it through the already
// opened descriptor to avoid a TOCTOU race.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("config file %s is not a regular file", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrConfigFileTooLarge, info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(content) > maxConfigFileSize {
		return nil, fmt.Errorf("%w: max %d bytes", ErrConfigFileTooLarge, maxConfigFileSize)
	}

	return content, nil
}
