// Package config loads service configuration from config files and
// HARVESTER_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Search   SearchConfig   `mapstructure:"search"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig holds the Postgres connection string.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// SearchConfig holds API keys for the search engine chain. Missing keys are
// fine; the chain just gets fewer engines.
type SearchConfig struct {
	SerperAPIKey    string `mapstructure:"serper_api_key"`
	SerpAPIAPIKey   string `mapstructure:"serpapi_api_key"`
	GoogleCSEAPIKey string `mapstructure:"google_cse_api_key"`
	GoogleCSEID     string `mapstructure:"google_cse_id"`
}

// FetchConfig holds page fetching limits.
type FetchConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	PerHostRPS     float64 `mapstructure:"per_host_rps"`
	Burst          int     `mapstructure:"burst"`
}

// Timeout returns the per-request fetch timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// HarvestConfig holds runner pool sizing.
type HarvestConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from config.yaml (searched in . and ./config)
// and the environment, applying defaults for anything unset. A missing
// config file is not an error.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.url", "postgres://localhost:5432/pivota?sslmode=disable")

	// Registering the key is what lets AutomaticEnv feed it through
	// Unmarshal; an unset key stays empty and the engine is skipped.
	v.SetDefault("search.serper_api_key", "")
	v.SetDefault("search.serpapi_api_key", "")
	v.SetDefault("search.google_cse_api_key", "")
	v.SetDefault("search.google_cse_id", "")

	v.SetDefault("fetch.timeout_seconds", 20)
	v.SetDefault("fetch.per_host_rps", 1.0)
	v.SetDefault("fetch.burst", 2)

	v.SetDefault("harvest.workers", 4)
	v.SetDefault("harvest.queue_size", 256)

	v.SetDefault("log.level", "info")
}

func validate(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server port must be in 1..65535, got: %d", config.Server.Port)
	}
	if config.Database.URL == "" {
		return fmt.Errorf("database url is required (set HARVESTER_DATABASE_URL)")
	}
	if config.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got: %d", config.Fetch.TimeoutSeconds)
	}
	if config.Harvest.Workers < 1 {
		return fmt.Errorf("harvest workers must be at least 1, got: %d", config.Harvest.Workers)
	}
	return nil
}
