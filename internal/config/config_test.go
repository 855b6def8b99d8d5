package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "github-metrics/internal/errors"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "metrics.db", cfg.DBPath)
	assert.Equal(t, "strands-agents", cfg.GithubOrg)
	assert.Equal(t, 50, cfg.RateLimitLowWater)
	assert.Equal(t, 10*time.Second, cfg.RateLimitMargin)
	assert.Equal(t, "private_", cfg.ExcludedRepoPrefix)
	assert.Equal(t, 3, cfg.MetricsBackdateDays)
	assert.Equal(t, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), cfg.MetricsEpochTime)
	assert.Error(t, cfg.RequireToken())
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GITHUB_TOKEN", "secret")
	t.Setenv("GITHUB_ORG", "acme")
	t.Setenv("RATE_LIMIT_MARGIN", "30s")
	t.Setenv("RATE_LIMIT_LOW_WATER", "100")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.GithubOrg)
	assert.Equal(t, 30*time.Second, cfg.RateLimitMargin)
	assert.Equal(t, 100, cfg.RateLimitLowWater)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.NoError(t, cfg.RequireToken())
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log format", "LOG_FORMAT", "xml"},
		{"negative low water", "RATE_LIMIT_LOW_WATER", "-1"},
		{"backdate out of range", "METRICS_BACKDATE_DAYS", "400"},
		{"bad epoch", "METRICS_EPOCH", "01/01/2010"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()

			var cfgErr *custom_errors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.key, cfgErr.Field)
		})
	}
}
