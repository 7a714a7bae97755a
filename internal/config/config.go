// Package config initializes the application's configuration. It uses the
// Viper library to read settings from an optional config file and from
// environment variables, and hands typed values to the fetch pipeline.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the typed configuration consumed by the fetch pipeline.
type Config struct {
	// Fetch pipeline
	TotalPages   int
	PageSize     int
	Concurrency  int
	Timeout      time.Duration
	MaxRetries   int
	AllowPartial bool

	// Supplemental details stage
	FetchDetails       bool
	DetailsConcurrency int

	// Storefront
	BaseURL   string
	UserAgent string

	// Output
	OutputPath string

	// Cache (empty RedisAddr disables caching)
	RedisAddr string
	CacheTTL  time.Duration

	// Logging
	LogLevel  string
	LogPretty bool
}

// Init sets defaults, config file search paths, and environment binding.
// Call once at startup before Load.
func Init(cfgFile string) error {
	viper.SetDefault("fetch.total_pages", 2)
	viper.SetDefault("fetch.page_size", 25) // storefront page contract
	viper.SetDefault("fetch.concurrency", 4)
	viper.SetDefault("fetch.timeout", "15s")
	viper.SetDefault("fetch.max_retries", 2)
	viper.SetDefault("fetch.allow_partial", false)

	viper.SetDefault("details.enabled", false)
	viper.SetDefault("details.concurrency", 10)

	viper.SetDefault("store.base_url", "https://store.steampowered.com")
	viper.SetDefault("store.user_agent", "steam-topsellers/0.1.0")

	viper.SetDefault("output.path", "search_results.json")

	viper.SetDefault("redis.addr", "")
	viper.SetDefault("cache.ttl", "5m")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.pretty", false)

	// Environment variables, e.g. TOPSELLERS_FETCH_CONCURRENCY=8
	viper.SetEnvPrefix("TOPSELLERS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.topsellers")
	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

// Load validates the current viper state and returns the typed config.
func Load() (Config, error) {
	cfg := Config{
		TotalPages:         viper.GetInt("fetch.total_pages"),
		PageSize:           viper.GetInt("fetch.page_size"),
		Concurrency:        viper.GetInt("fetch.concurrency"),
		Timeout:            viper.GetDuration("fetch.timeout"),
		MaxRetries:         viper.GetInt("fetch.max_retries"),
		AllowPartial:       viper.GetBool("fetch.allow_partial"),
		FetchDetails:       viper.GetBool("details.enabled"),
		DetailsConcurrency: viper.GetInt("details.concurrency"),
		BaseURL:            viper.GetString("store.base_url"),
		UserAgent:          viper.GetString("store.user_agent"),
		OutputPath:         viper.GetString("output.path"),
		RedisAddr:          viper.GetString("redis.addr"),
		CacheTTL:           viper.GetDuration("cache.ttl"),
		LogLevel:           viper.GetString("log.level"),
		LogPretty:          viper.GetBool("log.pretty"),
	}

	if cfg.TotalPages <= 0 {
		return Config{}, fmt.Errorf("fetch.total_pages must be positive (got %d)", cfg.TotalPages)
	}
	if cfg.PageSize <= 0 {
		return Config{}, fmt.Errorf("fetch.page_size must be positive (got %d)", cfg.PageSize)
	}
	if cfg.Concurrency <= 0 {
		return Config{}, fmt.Errorf("fetch.concurrency must be positive (got %d)", cfg.Concurrency)
	}
	if cfg.MaxRetries < 0 {
		return Config{}, fmt.Errorf("fetch.max_retries must be non-negative (got %d)", cfg.MaxRetries)
	}
	if cfg.OutputPath == "" {
		return Config{}, fmt.Errorf("output.path must not be empty")
	}

	return cfg, nil
}
