// Package config provides configuration types and defaults for hnlive.
package config

import (
	"fmt"
	"time"

	"github.com/abelbrown/hnlive/internal/feed"
	"github.com/abelbrown/hnlive/internal/hn"
)

// Config holds all configuration for hnlive.
type Config struct {
	APIBaseURL        string        `yaml:"api_base_url" mapstructure:"api_base_url"`
	Filter            string        `yaml:"filter" mapstructure:"filter"`
	PageSize          int           `yaml:"page_size" mapstructure:"page_size"`
	LiveCapacity      int           `yaml:"live_capacity" mapstructure:"live_capacity"`
	PollInterval      time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	MaxCommentDepth   int           `yaml:"max_comment_depth" mapstructure:"max_comment_depth"`
	FetchConcurrency  int           `yaml:"fetch_concurrency" mapstructure:"fetch_concurrency"`
	PollFetchLimit    int           `yaml:"poll_fetch_limit" mapstructure:"poll_fetch_limit"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 = unlimited
	RequestTimeout    time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	CacheSize         int           `yaml:"cache_size" mapstructure:"cache_size"` // 0 disables the item cache
	MetricsAddr       string        `yaml:"metrics_addr" mapstructure:"metrics_addr"`
	Log               LogConfig     `yaml:"log" mapstructure:"log"`
}

// LogConfig holds log file and rotation settings.
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file"` // empty = ~/.hnlive/logs/hnlive.log
	Level      string `yaml:"level" mapstructure:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// Default returns sensible defaults.
func Default() *Config {
	return &Config{
		APIBaseURL:        hn.DefaultBaseURL,
		Filter:            string(feed.FilterStory),
		PageSize:          feed.DefaultPageSize,
		LiveCapacity:      feed.DefaultLiveCapacity,
		PollInterval:      feed.DefaultPollInterval,
		MaxCommentDepth:   feed.DefaultMaxCommentDepth,
		FetchConcurrency:  feed.DefaultConcurrency,
		PollFetchLimit:    feed.DefaultPollFetchLimit,
		RequestsPerSecond: 20,
		RequestTimeout:    30 * time.Second,
		CacheSize:         hn.DefaultCacheSize,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// ParsedFilter returns the configured filter.
func (c *Config) ParsedFilter() (feed.Filter, error) {
	return feed.ParseFilter(c.Filter)
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url must be set")
	}
	if _, err := c.ParsedFilter(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	positive := []struct {
		key string
		val int
	}{
		{"page_size", c.PageSize},
		{"live_capacity", c.LiveCapacity},
		{"max_comment_depth", c.MaxCommentDepth},
		{"fetch_concurrency", c.FetchConcurrency},
		{"poll_fetch_limit", c.PollFetchLimit},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.key, p.val)
		}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative, got %v", c.RequestsPerSecond)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize)
	}
	return nil
}

// EngineOptions maps the config onto sync engine options. Metrics are left
// for the caller.
func (c *Config) EngineOptions() (feed.Options, error) {
	filter, err := c.ParsedFilter()
	if err != nil {
		return feed.Options{}, err
	}
	return feed.Options{
		Filter:          filter,
		PageSize:        c.PageSize,
		LiveCapacity:    c.LiveCapacity,
		MaxCommentDepth: c.MaxCommentDepth,
		Concurrency:     c.FetchConcurrency,
		PollFetchLimit:  c.PollFetchLimit,
		PollInterval:    c.PollInterval,
	}, nil
}
