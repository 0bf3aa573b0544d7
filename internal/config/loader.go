package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// GlobalConfigDir is the XDG config directory name.
	GlobalConfigDir = "hnlive"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. HNLIVE_PAGE_SIZE.
	EnvPrefix = "HNLIVE"
)

// Load reads configuration into a validated Config.
// Precedence (later overrides earlier):
//  1. Default() values
//  2. $XDG_CONFIG_HOME/hnlive/config.yaml
//  3. The file named by the "config" key (--config flag)
//  4. Environment variables (HNLIVE_*)
//  5. CLI flags already bound to v
//
// A missing global file is ignored; a missing explicit file is an error.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := globalConfigPath(); path != "" {
		if err := mergeFile(v, path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if explicit := v.GetString("config"); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := mergeFile(v, explicit); err != nil {
			return nil, fmt.Errorf("load %s: %w", explicit, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so env and flag overrides resolve even
// when no file mentions them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("api_base_url", d.APIBaseURL)
	v.SetDefault("filter", d.Filter)
	v.SetDefault("page_size", d.PageSize)
	v.SetDefault("live_capacity", d.LiveCapacity)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("max_comment_depth", d.MaxCommentDepth)
	v.SetDefault("fetch_concurrency", d.FetchConcurrency)
	v.SetDefault("poll_fetch_limit", d.PollFetchLimit)
	v.SetDefault("requests_per_second", d.RequestsPerSecond)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("cache_size", d.CacheSize)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}

// globalConfigPath returns the global config file path if it exists.
func globalConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}

	path := filepath.Join(configDir, GlobalConfigDir, GlobalConfigFile)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// mergeFile reads a YAML file through a scratch viper and merges it in.
func mergeFile(v *viper.Viper, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	fileViper := viper.New()
	fileViper.SetConfigType("yaml")
	if err := fileViper.ReadConfig(file); err != nil {
		return err
	}
	return v.MergeConfigMap(fileViper.AllSettings())
}
