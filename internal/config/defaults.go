package config

import (
	"runtime"
	"time"
)

// Default values.
const (
	DefaultIndexPath       = "./data/index"
	DefaultExtractTimeout  = 30 * time.Second
	DefaultMaxFileSize     = 100 << 20
	DefaultLimit           = 10
	DefaultMaxLimit        = 100
	DefaultOverFetchFactor = 10
	DefaultCacheSize       = 256
	DefaultSuggestDistance = 2
	DefaultDebounce        = 2 * time.Second
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = DefaultIndexPath
	}
	if cfg.Index.Workers == 0 {
		cfg.Index.Workers = runtime.NumCPU()
	}
	if cfg.Index.ExtractTimeout == 0 {
		cfg.Index.ExtractTimeout = DefaultExtractTimeout
	}
	if cfg.Index.MaxFileSize == 0 {
		cfg.Index.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = DefaultLimit
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = DefaultMaxLimit
	}
	if cfg.Search.OverFetchFactor == 0 {
		cfg.Search.OverFetchFactor = DefaultOverFetchFactor
	}
	if cfg.Search.CacheSize == 0 {
		cfg.Search.CacheSize = DefaultCacheSize
	}
	if cfg.Search.SuggestDistance == 0 {
		cfg.Search.SuggestDistance = DefaultSuggestDistance
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
}
