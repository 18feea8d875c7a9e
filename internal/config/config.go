// Package config provides configuration loading and defaults for ghcard.
//
// Values are layered: Default, then an optional YAML file, then environment
// variables. The command line applies explicit flags on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	profile "github.com/hanpama/ghcard/internal/profile"
	transport "github.com/hanpama/ghcard/internal/transport"
)

// ServerConfig holds the settings of the serve command.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"GHCARD_ADDR"`
	// SuspendTimeout is how long a page request waits for pending data.
	SuspendTimeout time.Duration `yaml:"suspend_timeout" env:"GHCARD_SUSPEND_TIMEOUT"`
	Pretty         bool          `yaml:"pretty" env:"GHCARD_PRETTY"`
}

// OTelConfig enables tracing when Endpoint is set.
type OTelConfig struct {
	Endpoint string `yaml:"endpoint" env:"GHCARD_OTEL_ENDPOINT"`
	Service  string `yaml:"service" env:"GHCARD_OTEL_SERVICE"`
}

// Config is the top-level configuration.
type Config struct {
	Token    string        `yaml:"token" env:"GITHUB_TOKEN"`
	Endpoint string        `yaml:"endpoint" env:"GHCARD_ENDPOINT"`
	Timeout  time.Duration `yaml:"timeout" env:"GHCARD_TIMEOUT"`
	// Login selects UserProfileByLoginQuery when it differs from the
	// login built into UserProfileQuery.
	Login  string       `yaml:"login" env:"GHCARD_LOGIN"`
	Server ServerConfig `yaml:"server"`
	OTel   OTelConfig   `yaml:"otel"`
}

var (
	ErrNoToken    = errors.New("config: a GitHub token is required")
	ErrNoEndpoint = errors.New("config: an endpoint is required")
)

// Default returns a new Config populated with default values.
func Default() *Config {
	return &Config{
		Endpoint: transport.DefaultEndpoint,
		Timeout:  30 * time.Second,
		Login:    profile.DefaultLogin,
		Server: ServerConfig{
			Addr:           ":8080",
			SuspendTimeout: 2 * time.Second,
		},
		OTel: OTelConfig{Service: "ghcard"},
	}
}

// LoadFile reads the YAML file at path over cfg. Keys missing from the file
// keep their current values.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with the environment variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

// Load returns Default overlaid with the file at path (skipped when path is
// empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first missing required value.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrNoToken
	}
	if c.Endpoint == "" {
		return ErrNoEndpoint
	}
	return nil
}
