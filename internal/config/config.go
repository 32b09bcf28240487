// Package config loads runtime configuration from a .env file, the
// environment, and an optional config file, in ascending precedence of
// environment over file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the full runtime configuration.
type Config struct {
	// LixAPIKey authenticates against the Lix API. Required for every
	// collection except employees.
	LixAPIKey string `mapstructure:"lix_api_key"`

	// LookCAPIToken authenticates against the LookC API. Required for the
	// employees collection.
	LookCAPIToken string `mapstructure:"lookc_api_token"`

	// DBPath is the SQLite database file.
	DBPath string `mapstructure:"db_path"`

	// Throttle is the fixed interval between Lix API requests.
	Throttle time.Duration `mapstructure:"throttle"`

	// RedisAddr enables the lookup response cache when set.
	RedisAddr string `mapstructure:"redis_addr"`

	// CacheTTL is how long cached lookup responses stay valid.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	// LogFormat is "json" or "console".
	LogFormat string `mapstructure:"log_format"`

	// MetricsAddr serves Prometheus metrics when set (e.g. ":9090").
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Load reads configuration. A .env file in the working directory is loaded
// first when present, then an optional prospector.yaml, then environment
// variables (LIX_API_KEY, LOOKC_API_TOKEN, DB_PATH, ...).
func Load() (*Config, error) {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("prospector")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Defaults double as key registrations so AutomaticEnv picks the keys
	// up during Unmarshal.
	v.SetDefault("lix_api_key", "")
	v.SetDefault("lookc_api_token", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("db_path", "prospector.db")
	v.SetDefault("throttle", 3*time.Second)
	v.SetDefault("cache_ttl", 24*time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
