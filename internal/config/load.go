// Package config loads and validates application configuration from
// environment variables and optional config files.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("storage.source_dir", "/var/lib/dragnet/uploads")
	v.SetDefault("engine.queue_capacity", 100)
	v.SetDefault("engine.scoring_pool_size", 4)
	v.SetDefault("engine.ingest_batch_size", 1000)
	v.SetDefault("engine.column_cache_size", 128)
	v.SetDefault("engine.retry_backoff_base", 30*time.Second)
	v.SetDefault("engine.retry_backoff_cap", 30*time.Minute)
	v.SetDefault("engine.retry_sweep_interval", 15*time.Second)
	v.SetDefault("smtp.port", 587)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/dragnet")
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; the environment carries the rest.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("DRAGNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not surface env-only keys through Unmarshal, so
	// every known key is bound explicitly.
	for _, key := range []string{
		"server.port", "server.log_level",
		"database.url",
		"storage.source_dir",
		"engine.queue_capacity", "engine.scoring_pool_size",
		"engine.ingest_batch_size", "engine.column_cache_size",
		"engine.retry_backoff_base", "engine.retry_backoff_cap",
		"engine.retry_sweep_interval",
		"smtp.host", "smtp.port", "smtp.username", "smtp.password", "smtp.from",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment key %q: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
