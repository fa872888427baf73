// Package config loads the app configuration from an optional YAML file
// plus SKILLTRACK_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Sync   SyncConfig   `mapstructure:"sync"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	// BaseURL of the remote learning API.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// TimeoutSeconds bounds each pull/push/log request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"min=1"`
	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `mapstructure:"token_env" validate:"required"`
}

type SyncConfig struct {
	// SchemaVersion is this build's local data schema version, gated
	// against the server's supported range on every pull.
	SchemaVersion int `mapstructure:"schema_version" validate:"min=1"`
	// IntervalSeconds between periodic sync attempts while running.
	IntervalSeconds int `mapstructure:"interval_seconds" validate:"min=1"`
	// MaxRetryAttempts per sync trigger.
	MaxRetryAttempts uint `mapstructure:"max_retry_attempts" validate:"min=1"`
}

type LogConfig struct {
	// File receives the rotated JSON log. Empty disables the file sink.
	File string `mapstructure:"file"`
	// Debug enables the console sink and debug-level logging.
	Debug bool `mapstructure:"debug"`
}

// RequestTimeout returns the per-request gateway timeout.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Interval returns the periodic sync interval.
func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Load reads configuration from configFile (or the default search path
// when empty), applies env overrides, and validates the result.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/skilltrack")
	}

	v.SetDefault("server.timeout_seconds", 15)
	v.SetDefault("server.token_env", "SKILLTRACK_TOKEN")
	v.SetDefault("sync.schema_version", 1)
	v.SetDefault("sync.interval_seconds", 300)
	v.SetDefault("sync.max_retry_attempts", 5)
	v.SetDefault("log.file", "")
	v.SetDefault("log.debug", false)

	if err := v.BindEnv("server.base_url", "SKILLTRACK_SERVER_URL"); err != nil {
		return nil, fmt.Errorf("bind SKILLTRACK_SERVER_URL: %w", err)
	}
	if err := v.BindEnv("log.debug", "SKILLTRACK_DEBUG"); err != nil {
		return nil, fmt.Errorf("bind SKILLTRACK_DEBUG: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
