package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the audit profile loaded from a YAML file. Flag values override
// the file in the CLI layer.
type Config struct {
	// Region is the AWS region audited.
	Region string `mapstructure:"region"`
	// Endpoint overrides the AWS endpoint; pointing it at a local emulator
	// also disables the resource-age exclusion check.
	Endpoint string `mapstructure:"endpoint"`
	// ExclusionWindowDays drops resources younger than this (default 30).
	ExclusionWindowDays int `mapstructure:"exclusion_window_days"`
	// Families limits the audit to the named resource families; empty
	// means all of log_group, network_access and queue.
	Families []string `mapstructure:"families"`
	// Addr is the listen address for the web server.
	Addr string `mapstructure:"addr"`
}

// Default returns the configuration used when no profile file is given.
func Default() Config {
	return Config{
		ExclusionWindowDays: 30,
		Addr:                ":8080",
	}
}

// Load reads a profile file and fills unset fields with defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse audit config: %w", err)
	}
	return &cfg, nil
}

// LocalEndpoint reports whether the configured endpoint targets a local or
// mock AWS emulator. Downstream integration suites create resources right
// before auditing them, so the age-based exclusion is skipped for these.
func (c Config) LocalEndpoint() bool {
	return strings.Contains(c.Endpoint, "localhost") || strings.Contains(c.Endpoint, "127.0.0.1")
}
