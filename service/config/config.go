package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// Command-line flags override individual fields after Load.
type Config struct {
	// Explorer configuration
	ExplorerURL    string
	RequestTimeout time.Duration // zero means no timeout

	// Logging configuration
	LogLevel  string
	LogFormat string

	// NATS configuration (disabled when NATSURL is empty)
	NATSURL           string
	NATSSubjectPrefix string

	// Prometheus Pushgateway configuration (disabled when empty)
	PushgatewayURL string
}

// Load reads configuration from environment variables and validates it.
// Returns an error describing every invalid value.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Explorer configuration
	cfg.ExplorerURL = getEnvOrDefault("EXPLORER_API_URL", "https://api.etherscan.io/api")

	timeout, err := parseDuration("REQUEST_TIMEOUT", "0s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RequestTimeout = timeout
	}

	// Logging configuration
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "error")
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", "json")

	// NATS configuration
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getEnvOrDefault("NATS_SUBJECT_PREFIX", "sweeps")

	// Pushgateway configuration
	cfg.PushgatewayURL = os.Getenv("PUSHGATEWAY_URL")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
// This is useful after flags have been applied on top of Load.
func (c *Config) Validate() error {
	var errs []error

	if c.ExplorerURL == "" {
		errs = append(errs, fmt.Errorf("ExplorerURL is required"))
	}

	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("RequestTimeout cannot be negative"))
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LogFormat must be json or text, got %q", c.LogFormat))
	}

	if c.NATSURL != "" && c.NATSSubjectPrefix == "" {
		errs = append(errs, fmt.Errorf("NATSSubjectPrefix is required when NATSURL is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// ParseLogLevel maps a level name to a slog.Level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}
