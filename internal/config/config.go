// Package config provides configuration loading and structs for docsearch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Index   IndexConfig   `yaml:"index"`
	Search  SearchConfig  `yaml:"search"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds the index directory.
type StorageConfig struct {
	IndexPath string `yaml:"index_path"`
}

// IndexConfig controls directory collection and extraction.
type IndexConfig struct {
	Root           string        `yaml:"root"`
	Workers        int           `yaml:"workers"`
	ExtractTimeout time.Duration `yaml:"extract_timeout"`
	MaxFileSize    int64         `yaml:"max_file_size"`
	Extensions     []string      `yaml:"extensions"`
}

// SearchConfig holds result paging and candidate window settings.
type SearchConfig struct {
	DefaultLimit    int `yaml:"default_limit"`
	MaxLimit        int `yaml:"max_limit"`
	OverFetchFactor int `yaml:"over_fetch_factor"`
	CacheSize       int `yaml:"cache_size"`
	// SuggestDistance is the largest edit distance of a spelling
	// suggestion for a query with no hits. Negative disables suggestions.
	SuggestDistance int `yaml:"suggest_distance"`
}

// WatchConfig holds rebuild-on-change settings.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, applies defaults, expands
// paths, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	if cfg.Index.Root != "" {
		cfg.Index.Root = expandPath(cfg.Index.Root, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration with every default applied.
// Relative paths resolve against the working directory.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	if wd, err := os.Getwd(); err == nil {
		cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, wd)
	}
	return &cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Storage.IndexPath == "" {
		result = multierror.Append(result, fmt.Errorf("storage.index_path is required"))
	}
	if c.Index.Workers < 0 {
		result = multierror.Append(result, fmt.Errorf("index.workers must not be negative, got %d", c.Index.Workers))
	}
	if c.Index.ExtractTimeout < 0 {
		result = multierror.Append(result, fmt.Errorf("index.extract_timeout must not be negative, got %s", c.Index.ExtractTimeout))
	}
	if c.Index.MaxFileSize < 0 {
		result = multierror.Append(result, fmt.Errorf("index.max_file_size must not be negative, got %d", c.Index.MaxFileSize))
	}
	if c.Search.DefaultLimit < 1 {
		result = multierror.Append(result, fmt.Errorf("search.default_limit must be positive, got %d", c.Search.DefaultLimit))
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		result = multierror.Append(result, fmt.Errorf("search.max_limit (%d) must be at least search.default_limit (%d)", c.Search.MaxLimit, c.Search.DefaultLimit))
	}
	if c.Search.OverFetchFactor < 1 {
		result = multierror.Append(result, fmt.Errorf("search.over_fetch_factor must be at least 1, got %d", c.Search.OverFetchFactor))
	}
	if c.Search.CacheSize < 0 {
		result = multierror.Append(result, fmt.Errorf("search.cache_size must not be negative, got %d", c.Search.CacheSize))
	}
	if c.Watch.Debounce < 0 {
		result = multierror.Append(result, fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce))
	}
	return result.ErrorOrNil()
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		path = strings.TrimPrefix(path, "~/")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
