package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/doorman/pkg/observability"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DOORMAN_POSTGRES_URL", "postgres://localhost/doorman?sslmode=disable")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)

	assert.Empty(t, cfg.Site.BasePath)
	assert.Equal(t, "/", cfg.Site.FrontPage)
	assert.Equal(t, 24*time.Hour, cfg.Site.SessionLifetime)
	assert.Equal(t, "@every 10m", cfg.Site.JanitorSchedule)

	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DOORMAN_POSTGRES_URL", "postgres://localhost/doorman")
	t.Setenv("DOORMAN_PORT", "8081")
	t.Setenv("DOORMAN_BASE_PATH", "/sub/")
	t.Setenv("DOORMAN_FRONT_PAGE", "/home")
	t.Setenv("DOORMAN_SESSION_LIFETIME", "12h")
	t.Setenv("DOORMAN_POSTGRES_MAX_CONNS", "50")
	t.Setenv("DOORMAN_LOG_LEVEL", "debug")
	t.Setenv("DOORMAN_METRICS_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "/sub", cfg.Site.BasePath, "trailing slash is trimmed")
	assert.Equal(t, "/home", cfg.Site.FrontPage)
	assert.Equal(t, 12*time.Hour, cfg.Site.SessionLifetime)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfig_RequiresPostgresURL(t *testing.T) {
	t.Setenv("DOORMAN_POSTGRES_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres URL")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", HealthPort: "9090"},
			Site:   SiteConfig{FrontPage: "/"},
			Database: DatabaseConfig{
				URL: "postgres://localhost/doorman",
			},
		}
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Server.HealthPort = cfg.Server.Port
	assert.Error(t, cfg.Validate(), "api and health ports must differ")

	cfg = valid()
	cfg.Site.BasePath = "sub"
	assert.Error(t, cfg.Validate(), "base path must start with /")

	cfg = valid()
	cfg.Site.FrontPage = "https://example.com"
	assert.Error(t, cfg.Validate(), "front page must be internal")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, observability.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, observability.WarnLevel, parseLogLevel("WARNING"))
	assert.Equal(t, observability.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, observability.InfoLevel, parseLogLevel("nonsense"))
}
