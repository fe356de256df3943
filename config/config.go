// Package config loads cache settings for embedding programs from a yaml file
// and APP_-prefixed environment variables.
package config

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// DefaultCapacity matches the cache package default; duplicated here so the
// config layer stays free of cache imports.
const DefaultCapacity = 10000

type Config struct {
	LogLevel string `mapstructure:"log_level"`
	Cache    struct {
		Capacity int    `mapstructure:"capacity"` // Maximum number of entries, pending and present
		Group    string `mapstructure:"group"`    // Prometheus label; empty disables instrumentation
	} `mapstructure:"cache"`
}

// Load reads configuration from config.yaml in the working directory or
// ./config, with environment variable overrides (APP_CACHE_CAPACITY,
// APP_LOG_LEVEL, ...). A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variable support
	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("cache.capacity", DefaultCapacity)
	v.SetDefault("cache.group", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// NewLogger builds a console zerolog logger at the configured level.
// An invalid or empty level falls back to info with a warning.
func NewLogger(cfg *Config) zerolog.Logger {
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:     os.Stdout,
		NoColor: false,
	}).With().Timestamp().Logger()

	level := zerolog.InfoLevel
	if cfg.LogLevel != "" {
		if parsed, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			level = parsed
		} else {
			logger.Warn().Str("invalid_level", cfg.LogLevel).Msg("Invalid log level, using default 'info'")
		}
	}
	return logger.Level(level)
}
