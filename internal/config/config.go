// Path: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxIDsPerCall is the upstream statistics endpoints' limit on identifiers per request.
const MaxIDsPerCall = 50

// DefaultBatchSize is the number of identifiers sent per statistics call
// unless search.batch_size says otherwise. It must not exceed MaxIDsPerCall.
const DefaultBatchSize = 40

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Fetcher  FetcherConfig
	Search   SearchConfig
	Watcher  WatcherConfig
}

// ServerConfig holds the API server settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// DatabaseConfig holds the database connection settings.
type DatabaseConfig struct {
	Driver           string `mapstructure:"driver"` // "mongo", "sqlite" or "postgres"
	URI              string `mapstructure:"uri"`
	Name             string `mapstructure:"name"`
	Collection       string `mapstructure:"collection"`
	StatusCollection string `mapstructure:"status_collection"`
}

// FetcherConfig holds settings for the video search API client.
type FetcherConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	APIKey            string `mapstructure:"api_key"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	Retries           int    `mapstructure:"retries"`
	BackoffMillis     int    `mapstructure:"backoff_ms"`
	MaxConnections    int    `mapstructure:"max_connections"`
	RequestsPerSecond int    `mapstructure:"requests_per_second"` // 0 disables the limiter
	BurstLimit        int    `mapstructure:"burst_limit"`
}

// Timeout is the per-attempt request timeout.
func (c FetcherConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Backoff is the base wait between throttled attempts.
func (c FetcherConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMillis) * time.Millisecond
}

// SearchConfig holds the default search parameters and filter thresholds.
type SearchConfig struct {
	Keywords       []string `mapstructure:"keywords"`
	Days           int      `mapstructure:"days"`
	MaxResults     int      `mapstructure:"max_results"`
	RegionCode     string   `mapstructure:"region_code"`
	MinViews       int64    `mapstructure:"min_views"`
	MaxSubscribers int64    `mapstructure:"max_subscribers"`
	// BatchSize must not exceed MaxIDsPerCall.
	BatchSize int `mapstructure:"batch_size"`
}

// WatcherConfig holds settings for the periodic "Watch Mode" runs.
type WatcherConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
	AutoSave        bool `mapstructure:"auto_save"`
}

// Load loads the configuration from file and environment variables.
// An empty path searches ./configs for config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("LOG.LEVEL", "info")
	v.SetDefault("LOG.FORMAT", "json")
	v.SetDefault("DATABASE.DRIVER", "mongo")
	v.SetDefault("DATABASE.URI", "mongodb://localhost:27017")
	v.SetDefault("DATABASE.NAME", "viral-scout")
	v.SetDefault("DATABASE.COLLECTION", "videos")
	v.SetDefault("DATABASE.STATUS_COLLECTION", "_runs")
	v.SetDefault("FETCHER.BASE_URL", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("FETCHER.TIMEOUT_SECONDS", 20)
	v.SetDefault("FETCHER.RETRIES", 2)
	v.SetDefault("FETCHER.BACKOFF_MS", 1000)
	v.SetDefault("FETCHER.MAX_CONNECTIONS", 20)
	v.SetDefault("FETCHER.REQUESTS_PER_SECOND", 0)
	v.SetDefault("FETCHER.BURST_LIMIT", 20)
	v.SetDefault("SEARCH.KEYWORDS", []string{})
	v.SetDefault("SEARCH.DAYS", 5)
	v.SetDefault("SEARCH.MAX_RESULTS", 5)
	v.SetDefault("SEARCH.MIN_VIEWS", 100)
	v.SetDefault("SEARCH.MAX_SUBSCRIBERS", 3000)
	v.SetDefault("SEARCH.BATCH_SIZE", DefaultBatchSize)
	v.SetDefault("WATCHER.ENABLED", false)
	v.SetDefault("WATCHER.INTERVAL_MINUTES", 60)
	v.SetDefault("WATCHER.AUTO_SAVE", true)

	// Load from config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err // Only tolerate a missing file when none was asked for
		}
	}

	// Load from environment variables, e.g. SCOUT_FETCHER_API_KEY
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate rejects settings that would make every run misbehave.
func (c *Config) validate() error {
	f := c.Fetcher
	switch {
	case f.TimeoutSeconds <= 0:
		return fmt.Errorf("fetcher.timeout_seconds must be positive, got %d", f.TimeoutSeconds)
	case f.Retries < 0:
		return fmt.Errorf("fetcher.retries must not be negative, got %d", f.Retries)
	case f.BackoffMillis < 0:
		return fmt.Errorf("fetcher.backoff_ms must not be negative, got %d", f.BackoffMillis)
	case f.MaxConnections < 0:
		return fmt.Errorf("fetcher.max_connections must not be negative, got %d", f.MaxConnections)
	case f.RequestsPerSecond < 0:
		return fmt.Errorf("fetcher.requests_per_second must not be negative, got %d", f.RequestsPerSecond)
	case f.RequestsPerSecond > 0 && f.BurstLimit <= 0:
		return fmt.Errorf("fetcher.burst_limit must be positive when requests_per_second is set, got %d", f.BurstLimit)
	}
	if b := c.Search.BatchSize; b < 1 || b > MaxIDsPerCall {
		return fmt.Errorf("search.batch_size must be within 1..%d, got %d", MaxIDsPerCall, b)
	}
	return nil
}
