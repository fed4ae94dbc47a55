package main

import (
	"fmt"

	"github.com/fyrsmithlabs/frontend/internal/config"
	httpserver "github.com/fyrsmithlabs/frontend/internal/http"
	"github.com/fyrsmithlabs/frontend/internal/logging"
	"github.com/fyrsmithlabs/frontend/internal/telemetry"
)

// appConfig is the complete front-end configuration.
type appConfig struct {
	Telemetry telemetry.Config  `koanf:"telemetry" yaml:"telemetry"`
	Logging   logging.Config    `koanf:"logging" yaml:"logging"`
	Server    httpserver.Config `koanf:"server" yaml:"server"`
}

func newDefaultAppConfig() *appConfig {
	return &appConfig{
		Telemetry: *telemetry.NewDefaultConfig(),
		Logging:   *logging.NewDefaultConfig(),
		Server:    *httpserver.NewDefaultConfig(),
	}
}

// Validate checks the sections the service cannot run without. Telemetry is
// checked when it is initialized, where a bad setting only disables it.
func (c *appConfig) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// loadConfig layers the YAML file at path (optional) and the environment over
// the defaults.
func loadConfig(path string) (*appConfig, error) {
	cfg := newDefaultAppConfig()
	if err := config.LoadWithFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
