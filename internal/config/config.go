// Package config provides gateway configuration with environment profiles
// and hot-reload support. Thresholds are read once at startup and threaded
// through constructors; nothing reads ambient globals after load.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/specificity-ai/specmux/pkg/provider"
)

// EnvVar selects the active profile (values: "dev", "prod"; default "prod").
const EnvVar = "SPECMUX_ENV"

// ProviderConfig extends the routing config with the connection settings the
// server needs to build the upstream adapter.
type ProviderConfig struct {
	provider.Config `yaml:",inline"`

	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Config represents the complete gateway configuration.
type Config struct {
	Environment string           `yaml:"environment"`
	Server      ServerConfig     `yaml:"server"`
	Providers   []ProviderConfig `yaml:"providers"`
	Failover    FailoverConfig   `yaml:"failover"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	RateLimit   RateLimitConfig  `yaml:"rate_limit"`
	Redis       RedisConfig      `yaml:"redis"`
	Database    DatabaseConfig   `yaml:"database"`
	Logging     LoggingConfig    `yaml:"logging"`
	Tracing     TracingConfig    `yaml:"tracing"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// FailoverConfig contains the health-tracking thresholds. An unset field
// falls back to the active profile's value.
type FailoverConfig struct {
	Enabled       bool          `yaml:"enabled"`
	MaxFailures   int           `yaml:"max_failures"`
	Cooldown      time.Duration `yaml:"cooldown"`
	FailureWindow time.Duration `yaml:"failure_window"`
}

// MetricsConfig contains query-metrics and Prometheus settings.
type MetricsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Path          string        `yaml:"path"`
	Retention     time.Duration `yaml:"retention"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

// RateLimitConfig defines the per-provider request limiter.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	RPM     int  `yaml:"rpm"`
	Burst   int  `yaml:"burst"`
}

// RedisConfig enables the shared health store for multi-instance
// deployments.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
}

// DatabaseConfig contains Postgres settings for the spec store.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TracingConfig contains OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
	Insecure    bool    `yaml:"insecure"`
}

// Profile thresholds: production stays stable under noise, development fails
// fast so broken providers surface immediately.
var failoverProfiles = map[string]FailoverConfig{
	"prod": {
		Enabled:       true,
		MaxFailures:   3,
		Cooldown:      60 * time.Second,
		FailureWindow: 5 * time.Minute,
	},
	"dev": {
		Enabled:       true,
		MaxFailures:   2,
		Cooldown:      30 * time.Second,
		FailureWindow: 3 * time.Minute,
	},
}

// Environment returns the active profile name from the process environment.
func Environment() string {
	if env := os.Getenv(EnvVar); env == "dev" {
		return "dev"
	}
	return "prod"
}

// DefaultConfig returns a configuration with the given profile's defaults.
func DefaultConfig(environment string) *Config {
	profile, ok := failoverProfiles[environment]
	if !ok {
		environment = "prod"
		profile = failoverProfiles["prod"]
	}
	return &Config{
		Environment: environment,
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Failover: profile,
		Metrics: MetricsConfig{
			Enabled:       true,
			Path:          "/metrics",
			Retention:     5 * time.Minute,
			SlowThreshold: 500 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Enabled: false,
			RPM:     60,
			Burst:   10,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "specmux",
			SampleRate:  1.0,
			Insecure:    true,
		},
	}
}

// LoadFromFile reads and parses a YAML configuration file. Environment
// variables in the format ${VAR_NAME} are expanded. The environment profile
// supplies defaults; explicit file values win.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	// Parse once to learn the environment, then again over that profile's
	// defaults so unset fields inherit from the right profile.
	var probe struct {
		Environment string `yaml:"environment"`
	}
	if err := yaml.Unmarshal([]byte(expanded), &probe); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	environment := probe.Environment
	if environment == "" {
		environment = Environment()
	}

	cfg := DefaultConfig(environment)
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, ok := failoverProfiles[c.Environment]; !ok {
		return fmt.Errorf("unknown environment %q", c.Environment)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("provider[%d] %q: duplicate name", i, p.Name)
		}
		seen[p.Name] = true
		if p.Priority <= 0 {
			return fmt.Errorf("provider[%d] %q: priority must be positive", i, p.Name)
		}
	}

	if c.Failover.MaxFailures <= 0 {
		return fmt.Errorf("failover.max_failures must be positive")
	}
	if c.Failover.Cooldown <= 0 {
		return fmt.Errorf("failover.cooldown must be positive")
	}
	if c.Failover.FailureWindow <= 0 {
		return fmt.Errorf("failover.failure_window must be positive")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when database is enabled")
	}
	return nil
}
