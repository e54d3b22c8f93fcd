// Package config loads process configuration from the environment.
//
// Gateway behavior (SSO on/off, exclusions, auto-provisioning) lives in the
// database and is edited through the settings API; this package only covers
// what the process needs before it can reach the database.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/doorman/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Site layout
	Site SiteConfig

	// Database configuration
	Database DatabaseConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// SiteConfig holds deployment layout settings
type SiteConfig struct {
	// BasePath is the deployment base path ("" when served at the root)
	BasePath string
	// FrontPage is the site's configured home path
	FrontPage string
	// SessionLifetime is how long established sessions stay valid
	SessionLifetime time.Duration
	// JanitorSchedule is the cron spec for expired-session cleanup
	JanitorSchedule string
}

// DatabaseConfig holds Postgres settings
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("DOORMAN_HOST", "0.0.0.0"),
			Port:            getEnv("DOORMAN_PORT", "8080"),
			ReadTimeout:     getEnvDuration("DOORMAN_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("DOORMAN_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("DOORMAN_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("DOORMAN_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("DOORMAN_HEALTH_PORT", "9090"),
		},
		Site: SiteConfig{
			BasePath:        strings.TrimSuffix(getEnv("DOORMAN_BASE_PATH", ""), "/"),
			FrontPage:       getEnv("DOORMAN_FRONT_PAGE", "/"),
			SessionLifetime: getEnvDuration("DOORMAN_SESSION_LIFETIME", 24*time.Hour),
			JanitorSchedule: getEnv("DOORMAN_JANITOR_SCHEDULE", "@every 10m"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DOORMAN_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("DOORMAN_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("DOORMAN_POSTGRES_IDLE_CONNS", 5),
		},
		Observability: ObservabilityConfig{
			LogLevel:       parseLogLevel(getEnv("DOORMAN_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("DOORMAN_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Site.BasePath != "" && !strings.HasPrefix(c.Site.BasePath, "/") {
		return fmt.Errorf("base path must start with /")
	}
	if !strings.HasPrefix(c.Site.FrontPage, "/") {
		return fmt.Errorf("front page must be an internal path")
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
