package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	Engine   EngineConfig   `mapstructure:"engine" validate:"required"`
	SMTP     SMTPConfig     `mapstructure:"smtp" validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database related settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// StorageConfig controls where uploaded source files are held until
// ingestion consumes them.
type StorageConfig struct {
	SourceDir string `mapstructure:"source_dir" validate:"required"`
}

// EngineConfig contains the job engine tunables.
type EngineConfig struct {
	QueueCapacity      int           `mapstructure:"queue_capacity" validate:"required,gt=0"`
	ScoringPoolSize    int           `mapstructure:"scoring_pool_size" validate:"required,gt=0"`
	IngestBatchSize    int           `mapstructure:"ingest_batch_size" validate:"required,gt=0"`
	ColumnCacheSize    int           `mapstructure:"column_cache_size" validate:"required,gt=0"`
	RetryBackoffBase   time.Duration `mapstructure:"retry_backoff_base" validate:"required"`
	RetryBackoffCap    time.Duration `mapstructure:"retry_backoff_cap" validate:"required"`
	RetrySweepInterval time.Duration `mapstructure:"retry_sweep_interval" validate:"required"`
}

// SMTPConfig contains the outbound mail settings.
type SMTPConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from" validate:"required,email"`
}
