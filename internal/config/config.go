package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	custom_errors "github-metrics/internal/errors"
)

// DateLayout is the day-granularity layout used for metric dates.
const DateLayout = "2006-01-02"

// Config holds all configuration for the application.
type Config struct {
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	LogFormat           string        `mapstructure:"LOG_FORMAT"`
	DBPath              string        `mapstructure:"DB_PATH"`
	GithubToken         string        `mapstructure:"GITHUB_TOKEN"`
	GithubOrg           string        `mapstructure:"GITHUB_ORG"`
	GithubAPIURL        string        `mapstructure:"GITHUB_API_URL"`
	RateLimitLowWater   int           `mapstructure:"RATE_LIMIT_LOW_WATER"`
	RateLimitMargin     time.Duration `mapstructure:"RATE_LIMIT_MARGIN"`
	ExcludedRepoPrefix  string        `mapstructure:"EXCLUDED_REPO_PREFIX"`
	MetricsEpoch        string        `mapstructure:"METRICS_EPOCH"`
	MetricsBackdateDays int           `mapstructure:"METRICS_BACKDATE_DAYS"`
	HTTPAddr            string        `mapstructure:"HTTP_ADDR"`
	MetricsEpochTime    time.Time     `mapstructure:"-"`
}

// LoadConfig reads configuration from a .env file and/or environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DB_PATH", "metrics.db")
	v.SetDefault("GITHUB_TOKEN", "")
	v.SetDefault("GITHUB_ORG", "strands-agents")
	v.SetDefault("GITHUB_API_URL", "")
	v.SetDefault("RATE_LIMIT_LOW_WATER", 50)
	v.SetDefault("RATE_LIMIT_MARGIN", "10s")
	v.SetDefault("EXCLUDED_REPO_PREFIX", "private_")
	v.SetDefault("METRICS_EPOCH", "2010-01-01")
	v.SetDefault("METRICS_BACKDATE_DAYS", 3)
	v.SetDefault("HTTP_ADDR", ":8080")

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and derives parsed fields. It runs before any
// storage is opened.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "json", "text":
	default:
		return &custom_errors.ConfigError{Field: "LOG_FORMAT", Reason: "must be json or text"}
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return &custom_errors.ConfigError{Field: "DB_PATH", Reason: "must not be empty"}
	}
	if strings.TrimSpace(c.GithubOrg) == "" {
		return &custom_errors.ConfigError{Field: "GITHUB_ORG", Reason: "must not be empty"}
	}
	if c.RateLimitLowWater < 0 {
		return &custom_errors.ConfigError{Field: "RATE_LIMIT_LOW_WATER", Reason: "must not be negative"}
	}
	if c.RateLimitMargin < 0 {
		return &custom_errors.ConfigError{Field: "RATE_LIMIT_MARGIN", Reason: "must not be negative"}
	}
	if c.MetricsBackdateDays < 0 || c.MetricsBackdateDays > 365 {
		return &custom_errors.ConfigError{Field: "METRICS_BACKDATE_DAYS", Reason: "must be between 0 and 365"}
	}

	epoch, err := time.Parse(DateLayout, c.MetricsEpoch)
	if err != nil {
		return &custom_errors.ConfigError{Field: "METRICS_EPOCH", Reason: "must be in YYYY-MM-DD format (e.g. 2010-01-01)"}
	}
	c.MetricsEpochTime = epoch
	return nil
}

// RequireToken reports an error when no GitHub credential is configured.
// Only commands that talk to the remote API call it.
func (c *Config) RequireToken() error {
	if c.GithubToken == "" {
		return &custom_errors.ConfigError{Field: "GITHUB_TOKEN", Reason: "is required"}
	}
	return nil
}
