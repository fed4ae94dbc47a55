package http

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/frontend/internal/config"
)

// DefaultPort is the port the front-end listens on.
const DefaultPort = 8079

// Config holds HTTP server configuration.
type Config struct {
	Host            string          `koanf:"host" yaml:"host"`
	Port            int             `koanf:"port" yaml:"port"`
	ShutdownTimeout config.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// NewDefaultConfig listens on all interfaces at DefaultPort.
func NewDefaultConfig() *Config {
	return &Config{
		Host:            "",
		Port:            DefaultPort,
		ShutdownTimeout: config.Duration(10 * time.Second),
	}
}

// Validate checks the port range and shutdown timeout. Port 0 picks a free
// port.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Port)
	}
	if c.ShutdownTimeout.Duration() <= 0 {
		return errors.New("server shutdown_timeout must be positive")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
