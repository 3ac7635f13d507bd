package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "IMGTASK"

// Load configuration from environment variables and optionally config files.
//
// Sources, lowest precedence first: built-in defaults, ./config.yaml, a .env
// file in the working directory, the process environment.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile is Load with an explicit YAML file and without .env handling.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.url", "")

	v.SetDefault("images.output_dir", "images")
	v.SetDefault("images.resolutions", []int{1024, 800})
	v.SetDefault("images.hash_algorithm", "md5")
	v.SetDefault("images.jpeg_quality", 85)
	v.SetDefault("images.fetch_timeout_seconds", 30)
	v.SetDefault("images.max_download_bytes", 50<<20)

	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.recover_pending", true)
	v.SetDefault("task.require_existing_source", false)

	v.SetDefault("pricing.min", 5.00)
	v.SetDefault("pricing.max", 50.00)

	v.SetDefault("telemetry.metrics_enabled", false)
	v.SetDefault("telemetry.export_interval_seconds", 60)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
