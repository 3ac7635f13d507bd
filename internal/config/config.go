package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Images    ImagesConfig    `mapstructure:"images" validate:"required"`
	Task      TaskConfig      `mapstructure:"task" validate:"required"`
	Pricing   PricingConfig   `mapstructure:"pricing" validate:"required"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// Supported database drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig selects the task and image store backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=memory sqlite postgres"`
	// URL is a postgres connection string or a sqlite file DSN.
	URL string `mapstructure:"url" validate:"required_unless=Driver memory"`
}

// ImagesConfig controls variant generation.
type ImagesConfig struct {
	OutputDir           string `mapstructure:"output_dir" validate:"required"`
	Resolutions         []int  `mapstructure:"resolutions" validate:"required,min=1,dive,gt=0"`
	HashAlgorithm       string `mapstructure:"hash_algorithm" validate:"required,oneof=md5 sha256 blake2b"`
	JPEGQuality         int    `mapstructure:"jpeg_quality" validate:"gte=1,lte=100"`
	FetchTimeoutSeconds int    `mapstructure:"fetch_timeout_seconds" validate:"gte=1"`
	MaxDownloadBytes    int64  `mapstructure:"max_download_bytes" validate:"gt=0"`
}

// FetchTimeout returns the per-download timeout.
func (c ImagesConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// TaskConfig controls background processing.
type TaskConfig struct {
	QueueSize             int  `mapstructure:"queue_size" validate:"gt=0"`
	RecoverPending        bool `mapstructure:"recover_pending"`
	RequireExistingSource bool `mapstructure:"require_existing_source"`
}

// PricingConfig bounds the random price estimate.
type PricingConfig struct {
	Min float64 `mapstructure:"min" validate:"gte=0"`
	Max float64 `mapstructure:"max" validate:"gtfield=Min"`
}

// TelemetryConfig controls the metrics exporter.
type TelemetryConfig struct {
	MetricsEnabled        bool `mapstructure:"metrics_enabled"`
	ExportIntervalSeconds int  `mapstructure:"export_interval_seconds" validate:"gte=1"`
}

// ExportInterval returns how often metrics are exported.
func (c TelemetryConfig) ExportInterval() time.Duration {
	return time.Duration(c.ExportIntervalSeconds) * time.Second
}
