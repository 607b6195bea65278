// Package config provides the configuration of the statement compiler,
// its plan cache and logging.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the unified configuration.
type Config struct {
	// Compiler holds code generation limits and switches
	Compiler CompilerConfig `json:"compiler" yaml:"compiler"`

	// Cache holds the compiled-program cache configuration
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Log holds logging configuration
	Log LogConfig `json:"log" yaml:"log"`
}

// CompilerConfig holds statement compiler configuration.
type CompilerConfig struct {
	// MaxIdentifierLength is the longest accepted object name in bytes
	MaxIdentifierLength int `json:"max_identifier_length" yaml:"max_identifier_length"`

	// MaxColumns is the maximum number of columns in one table
	MaxColumns int `json:"max_columns" yaml:"max_columns"`

	// DefaultEngine is the engine written into new table definitions
	DefaultEngine string `json:"default_engine" yaml:"default_engine"`

	// XferOptimization enables the bulk-transfer INSERT ... SELECT path
	XferOptimization bool `json:"xfer_optimization" yaml:"xfer_optimization"`

	// CountChanges makes INSERT programs emit the change counter as a result row
	CountChanges bool `json:"count_changes" yaml:"count_changes"`
}

// CacheConfig holds plan cache configuration.
type CacheConfig struct {
	// PlanCacheSize is the maximum number of cached INSERT programs (0 disables the cache)
	PlanCacheSize int `json:"plan_cache_size" yaml:"plan_cache_size"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`
}

// DefaultConfig returns the configuration used when nothing is loaded.
func DefaultConfig() *Config {
	return &Config{
		Compiler: CompilerConfig{
			MaxIdentifierLength: 65000,
			MaxColumns:          2000,
			DefaultEngine:       "memtx",
			XferOptimization:    true,
			CountChanges:        true,
		},
		Cache: CacheConfig{
			PlanCacheSize: 256,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Compiler.MaxIdentifierLength < 1 {
		return fmt.Errorf("compiler.max_identifier_length must be positive, got %d", c.Compiler.MaxIdentifierLength)
	}
	if c.Compiler.MaxColumns < 1 {
		return fmt.Errorf("compiler.max_columns must be positive, got %d", c.Compiler.MaxColumns)
	}
	switch c.Compiler.DefaultEngine {
	case "memtx", "vinyl":
	default:
		return fmt.Errorf("invalid compiler.default_engine: %s (must be memtx or vinyl)", c.Compiler.DefaultEngine)
	}
	if c.Cache.PlanCacheSize < 0 {
		return fmt.Errorf("cache.plan_cache_size must not be negative, got %d", c.Cache.PlanCacheSize)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %s", c.Log.Level)
	}
	return nil
}

// LoadFromFile reads a YAML or JSON config file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv overrides fields from SQLVIBE_* environment variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("SQLVIBE_MAX_IDENTIFIER_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Compiler.MaxIdentifierLength = n
		}
	}
	if v := os.Getenv("SQLVIBE_DEFAULT_ENGINE"); v != "" {
		cfg.Compiler.DefaultEngine = v
	}
	if v := os.Getenv("SQLVIBE_XFER_OPTIMIZATION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Compiler.XferOptimization = b
		}
	}
	if v := os.Getenv("SQLVIBE_PLAN_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.PlanCacheSize = n
		}
	}
	if v := os.Getenv("SQLVIBE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
