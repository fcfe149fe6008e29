// ABOUTME: Configuration loading and parsing for the chatdesk gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the routing timers. All of them are overridable from YAML.
const (
	DefaultLeaseTTL          = 30 * time.Second
	DefaultInactivityTimeout = 1800 * time.Second
	DefaultResponseTimeout   = 300 * time.Second
	DefaultStateTTL          = 24 * time.Hour
)

// Config represents the complete chatdesk gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Telegram TelegramConfig `yaml:"telegram"`
	Routing  RoutingConfig  `yaml:"routing"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the agent gateway listen address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// RedisConfig holds the shared-store connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TelegramConfig holds the contact channel credentials
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// RoutingConfig holds the timer knobs for the routing core.
// Duration fields are parsed from their raw string counterparts.
type RoutingConfig struct {
	LeaseTTL          time.Duration `yaml:"-"`
	InactivityTimeout time.Duration `yaml:"-"`
	ResponseTimeout   time.Duration `yaml:"-"`
	StateTTL          time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	LeaseTTLRaw          string `yaml:"lease_ttl"`
	InactivityTimeoutRaw string `yaml:"inactivity_timeout"`
	ResponseTimeoutRaw   string `yaml:"response_timeout"`
	StateTTLRaw          string `yaml:"state_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values; unset timers fall
// back to the package defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. Unset variables are replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required when telegram is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	parse := func(raw string, fallback time.Duration, name string) (time.Duration, error) {
		if raw == "" {
			return fallback, nil
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("parsing %s %q: %w", name, raw, err)
		}
		if d <= 0 {
			return 0, fmt.Errorf("%s must be positive, got %q", name, raw)
		}
		return d, nil
	}

	var err error
	if cfg.Routing.LeaseTTL, err = parse(cfg.Routing.LeaseTTLRaw, DefaultLeaseTTL, "lease_ttl"); err != nil {
		return err
	}
	if cfg.Routing.InactivityTimeout, err = parse(cfg.Routing.InactivityTimeoutRaw, DefaultInactivityTimeout, "inactivity_timeout"); err != nil {
		return err
	}
	if cfg.Routing.ResponseTimeout, err = parse(cfg.Routing.ResponseTimeoutRaw, DefaultResponseTimeout, "response_timeout"); err != nil {
		return err
	}
	if cfg.Routing.StateTTL, err = parse(cfg.Routing.StateTTLRaw, DefaultStateTTL, "state_ttl"); err != nil {
		return err
	}

	return nil
}
