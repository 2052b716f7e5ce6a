// Package config handles OverlayDB configuration via YAML files and environment variables.
//
// Configuration Precedence (highest to lowest):
//  1. Command-line flags (--data-dir, --in-memory, etc.)
//  2. Environment variables (OVERLAYDB_*)
//  3. Config file (config.yaml)
//  4. Built-in defaults
//
// Example Usage:
//
//	cfg, err := config.LoadFromFile(config.FindConfigFile())
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	fmt.Printf("Data dir: %s\n", cfg.Database.DataDir)
//
// Environment Variables (all use OVERLAYDB_ prefix):
//
// Database:
//   - OVERLAYDB_DATA_DIR="./data"
//   - OVERLAYDB_IN_MEMORY=true
//   - OVERLAYDB_SYNC_WRITES=true
//   - OVERLAYDB_LOW_MEMORY=true
//
// Overlay:
//   - OVERLAYDB_MAX_SCOPES=1000
//   - OVERLAYDB_VIEW_CACHE_MAX_ENTRIES=64
//
// Logging:
//   - OVERLAYDB_LOG_LEVEL="info"
//   - OVERLAYDB_LOG_FORMAT="json"
//   - OVERLAYDB_LOG_OUTPUT="stderr"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all OverlayDB configuration.
//
// Configuration is organized into logical sections:
//   - Database: real storage engine settings
//   - Overlay: per-transaction virtual entity limits
//   - Logging: logging configuration
type Config struct {
	// Database settings
	Database DatabaseConfig

	// Overlay settings
	Overlay OverlayConfig

	// Logging
	Logging LoggingConfig
}

// DatabaseConfig holds real storage settings.
type DatabaseConfig struct {
	// DataDir is the directory for Badger data files
	DataDir string
	// InMemory runs Badger without touching disk
	InMemory bool
	// SyncWrites fsyncs every write transaction
	SyncWrites bool
	// LowMemory trades throughput for smaller Badger tables and caches
	LowMemory bool
}

// OverlayConfig holds limits for the virtual entity overlay.
type OverlayConfig struct {
	// MaxScopes limits concurrently open transactions (0 = unlimited)
	MaxScopes int
	// ViewCacheMaxEntries bounds each transaction's view cache (0 = unlimited)
	ViewCacheMaxEntries int
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level (debug, info, warn, error)
	Level string
	// Format (json, text)
	Format string
	// Output (stdout, stderr, or file path)
	Output string
}

// YAMLConfig represents the YAML configuration file structure.
type YAMLConfig struct {
	Database struct {
		DataDir    string `yaml:"data_dir"`
		InMemory   *bool  `yaml:"in_memory"`
		SyncWrites *bool  `yaml:"sync_writes"`
		LowMemory  *bool  `yaml:"low_memory"`
	} `yaml:"database"`

	Overlay struct {
		MaxScopes           *int `yaml:"max_scopes"`
		ViewCacheMaxEntries *int `yaml:"view_cache_max_entries"`
	} `yaml:"overlay"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
}

// LoadDefaults returns the built-in defaults.
func LoadDefaults() *Config {
	config := &Config{}

	// Database defaults
	config.Database.DataDir = "./data"
	config.Database.InMemory = false
	config.Database.SyncWrites = false
	config.Database.LowMemory = false

	// Overlay defaults
	config.Overlay.MaxScopes = 0
	config.Overlay.ViewCacheMaxEntries = 64

	// Logging defaults
	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.Output = "stderr"

	return config
}

// LoadFromEnv returns the defaults overridden by OVERLAYDB_* environment variables.
func LoadFromEnv() *Config {
	config := LoadDefaults()
	applyEnvVars(config)
	return config
}

// ApplyEnvVars overrides config with any OVERLAYDB_* environment variables that are set.
func ApplyEnvVars(config *Config) {
	applyEnvVars(config)
}

func applyEnvVars(config *Config) {
	config.Database.DataDir = getEnv("OVERLAYDB_DATA_DIR", config.Database.DataDir)
	config.Database.InMemory = getEnvBool("OVERLAYDB_IN_MEMORY", config.Database.InMemory)
	config.Database.SyncWrites = getEnvBool("OVERLAYDB_SYNC_WRITES", config.Database.SyncWrites)
	config.Database.LowMemory = getEnvBool("OVERLAYDB_LOW_MEMORY", config.Database.LowMemory)

	config.Overlay.MaxScopes = getEnvInt("OVERLAYDB_MAX_SCOPES", config.Overlay.MaxScopes)
	config.Overlay.ViewCacheMaxEntries = getEnvInt("OVERLAYDB_VIEW_CACHE_MAX_ENTRIES", config.Overlay.ViewCacheMaxEntries)

	config.Logging.Level = strings.ToLower(getEnv("OVERLAYDB_LOG_LEVEL", config.Logging.Level))
	config.Logging.Format = strings.ToLower(getEnv("OVERLAYDB_LOG_FORMAT", config.Logging.Format))
	config.Logging.Output = getEnv("OVERLAYDB_LOG_OUTPUT", config.Logging.Output)
}

// LoadFromFile loads configuration with precedence defaults < file < environment.
// A missing file is not an error; an empty path skips the file step.
//
// Example config.yaml:
//
//	database:
//	  data_dir: /var/lib/overlaydb
//	  sync_writes: true
//	overlay:
//	  max_scopes: 500
//	logging:
//	  level: debug
func LoadFromFile(configPath string) (*Config, error) {
	config := LoadDefaults()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := applyYAML(config, data); err != nil {
				return nil, err
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnvVars(config)
	return config, nil
}

func applyYAML(config *Config, data []byte) error {
	var yamlCfg YAMLConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	// === Database Settings ===
	if yamlCfg.Database.DataDir != "" {
		config.Database.DataDir = yamlCfg.Database.DataDir
	}
	if yamlCfg.Database.InMemory != nil {
		config.Database.InMemory = *yamlCfg.Database.InMemory
	}
	if yamlCfg.Database.SyncWrites != nil {
		config.Database.SyncWrites = *yamlCfg.Database.SyncWrites
	}
	if yamlCfg.Database.LowMemory != nil {
		config.Database.LowMemory = *yamlCfg.Database.LowMemory
	}

	// === Overlay Settings ===
	if yamlCfg.Overlay.MaxScopes != nil {
		config.Overlay.MaxScopes = *yamlCfg.Overlay.MaxScopes
	}
	if yamlCfg.Overlay.ViewCacheMaxEntries != nil {
		config.Overlay.ViewCacheMaxEntries = *yamlCfg.Overlay.ViewCacheMaxEntries
	}

	// === Logging Settings ===
	if yamlCfg.Logging.Level != "" {
		config.Logging.Level = strings.ToLower(yamlCfg.Logging.Level)
	}
	if yamlCfg.Logging.Format != "" {
		config.Logging.Format = strings.ToLower(yamlCfg.Logging.Format)
	}
	if yamlCfg.Logging.Output != "" {
		config.Logging.Output = yamlCfg.Logging.Output
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !c.Database.InMemory && c.Database.DataDir == "" {
		return fmt.Errorf("data dir is required unless running in memory")
	}
	if c.Overlay.MaxScopes < 0 {
		return fmt.Errorf("invalid max scopes: %d", c.Overlay.MaxScopes)
	}
	if c.Overlay.ViewCacheMaxEntries < 0 {
		return fmt.Errorf("invalid view cache max entries: %d", c.Overlay.ViewCacheMaxEntries)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	return nil
}

// String returns a short representation suitable for logging.
func (c *Config) String() string {
	dataDir := c.Database.DataDir
	if c.Database.InMemory {
		dataDir = "<memory>"
	}
	return fmt.Sprintf(
		"Config{DataDir: %s, SyncWrites: %v, MaxScopes: %d, ViewCache: %d, Log: %s/%s}",
		dataDir, c.Database.SyncWrites,
		c.Overlay.MaxScopes, c.Overlay.ViewCacheMaxEntries,
		c.Logging.Level, c.Logging.Format,
	)
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first config file found, or empty string if none found.
// Search order:
//  1. ~/.overlaydb/config.yaml
//  2. Current working directory (config.yaml, overlaydb.yaml)
//  3. ~/.config/overlaydb/config.yaml (XDG)
func FindConfigFile() string {
	var candidates []string

	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		candidates = append(candidates, filepath.Join(home, ".overlaydb", "config.yaml"))
	}
	candidates = append(candidates, "config.yaml", "overlaydb.yaml")
	if homeErr == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "overlaydb", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
