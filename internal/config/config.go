// Package config loads and validates tablero.yml, the deployment
// configuration for one status board: board id, Redis connection, the role
// PIN table used for the CLI's sector login, and the optional report
// endpoint.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/plantasur/tablero/pkg/board"
)

// DefaultPath is where the CLI looks for the configuration file.
const DefaultPath = "tablero.yml"

// Config represents the top-level tablero.yml configuration.
type Config struct {
	Version string              `yaml:"version"`
	Board   string              `yaml:"board"`
	Redis   RedisConfig         `yaml:"redis"`
	Roles   map[string]RoleAuth `yaml:"roles,omitempty"`
	Report  *ReportConfig       `yaml:"report,omitempty"`
}

// RedisConfig specifies how to reach the Redis server backing the board.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// RoleAuth holds the login PIN for one sector. PIN policy enforcement beyond
// this equality check is the store access-control layer's concern.
type RoleAuth struct {
	PIN string `yaml:"pin"`
}

// ReportConfig specifies the optional cycle-report endpoint.
type ReportConfig struct {
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
}

// Default returns the configuration used when no tablero.yml exists:
// the filler-line board id against a local Redis, with no roles configured
// (every mutating command then requires a configured PIN and will say so).
func Default() *Config {
	return &Config{
		Version: "1.0",
		Board:   "llenadora",
		Redis:   RedisConfig{URL: "redis://localhost:6379"},
	}
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Board == "" {
		return fmt.Errorf("board id is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}

	for name, auth := range c.Roles {
		if err := board.Role(name).Validate(); err != nil {
			return fmt.Errorf("roles: %w", err)
		}
		if auth.PIN == "" {
			return fmt.Errorf("roles.%s: pin is required", name)
		}
	}

	if c.Report != nil {
		if c.Report.Endpoint == "" {
			return fmt.Errorf("report.endpoint is required when report is configured")
		}
		if c.Report.TimeoutSeconds < 0 {
			return fmt.Errorf("report.timeout_seconds must be >= 0, got %d", c.Report.TimeoutSeconds)
		}
	}

	return nil
}

// Authenticate checks a role + PIN login attempt against the configured
// role table. Returns the typed role on success.
func (c *Config) Authenticate(roleName, pin string) (board.Role, error) {
	role := board.Role(roleName)
	if err := role.Validate(); err != nil {
		return "", err
	}

	auth, ok := c.Roles[roleName]
	if !ok {
		return "", fmt.Errorf("no PIN configured for role %q (add it under roles in %s)", roleName, DefaultPath)
	}
	if pin == "" {
		return "", fmt.Errorf("PIN is required")
	}
	if auth.PIN != pin {
		return "", fmt.Errorf("wrong PIN for role %q", roleName)
	}
	return role, nil
}

// Load reads and validates tablero.yml from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
