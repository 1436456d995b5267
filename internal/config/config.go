package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort       string `mapstructure:"SERVER_PORT"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`
	BaseURL          string `mapstructure:"BASE_URL"`
	SearchTimeout    int    `mapstructure:"SEARCH_TIMEOUT"` // in seconds
	DetailTimeout    int    `mapstructure:"DETAIL_TIMEOUT"` // in seconds
	MaxListings      int    `mapstructure:"MAX_LISTINGS"`
	PageDelayMinMS   int    `mapstructure:"PAGE_DELAY_MIN_MS"`
	PageDelayMaxMS   int    `mapstructure:"PAGE_DELAY_MAX_MS"`
	DetailDelayMinMS int    `mapstructure:"DETAIL_DELAY_MIN_MS"`
	DetailDelayMaxMS int    `mapstructure:"DETAIL_DELAY_MAX_MS"`
	Proxies          string `mapstructure:"PROXIES"` // comma separated
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	RedisPassword    string `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int    `mapstructure:"REDIS_DB"`
	HarvestTTLHours  int    `mapstructure:"HARVEST_TTL_HOURS"`
	HTTPWriteTimeout int    `mapstructure:"HTTP_WRITE_TIMEOUT"` // in seconds
}

var defaults = map[string]any{
	"SERVER_PORT":         "5000",
	"LOG_LEVEL":           "info",
	"BASE_URL":            "https://www.rumah123.com",
	"SEARCH_TIMEOUT":      10,
	"DETAIL_TIMEOUT":      15,
	"MAX_LISTINGS":        50,
	"PAGE_DELAY_MIN_MS":   1000,
	"PAGE_DELAY_MAX_MS":   2000,
	"DETAIL_DELAY_MIN_MS": 500,
	"DETAIL_DELAY_MAX_MS": 1500,
	"PROXIES":             "",
	"REDIS_ADDR":          "",
	"REDIS_PASSWORD":      "",
	"REDIS_DB":            0,
	"HARVEST_TTL_HOURS":   24,
	"HTTP_WRITE_TIMEOUT":  600,
}

// Load reads configuration from a .env file in the working directory, if any,
// and from environment variables.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file path. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Environment variables alone are enough in production.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return errors.New("SERVER_PORT must not be empty")
	}
	if c.BaseURL == "" {
		return errors.New("BASE_URL must not be empty")
	}
	if c.SearchTimeout <= 0 || c.DetailTimeout <= 0 {
		return errors.New("SEARCH_TIMEOUT and DETAIL_TIMEOUT must be positive")
	}
	if c.PageDelayMaxMS < c.PageDelayMinMS || c.DetailDelayMaxMS < c.DetailDelayMinMS {
		return errors.New("delay maximum must not be lower than its minimum")
	}
	return nil
}

func (c *Config) SearchTimeoutDuration() time.Duration {
	return time.Duration(c.SearchTimeout) * time.Second
}

func (c *Config) DetailTimeoutDuration() time.Duration {
	return time.Duration(c.DetailTimeout) * time.Second
}

func (c *Config) PageDelay() (time.Duration, time.Duration) {
	return time.Duration(c.PageDelayMinMS) * time.Millisecond, time.Duration(c.PageDelayMaxMS) * time.Millisecond
}

func (c *Config) DetailDelay() (time.Duration, time.Duration) {
	return time.Duration(c.DetailDelayMinMS) * time.Millisecond, time.Duration(c.DetailDelayMaxMS) * time.Millisecond
}

func (c *Config) HarvestTTL() time.Duration {
	return time.Duration(c.HarvestTTLHours) * time.Hour
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.HTTPWriteTimeout) * time.Second
}
