package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all pagebuilder configuration.
type Config struct {
	// DataDir holds the SQLite database and exported documents.
	DataDir string `yaml:"data_dir"`

	Database DatabaseConfig `yaml:"database"`
	History  HistoryConfig  `yaml:"history"`
	Autosave AutosaveConfig `yaml:"autosave"`
	Registry RegistryConfig `yaml:"registry"`
	Watch    WatchConfig    `yaml:"watch"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig selects the document store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres, mysql, mongodb
	DSN    string `yaml:"dsn"`
	// Database is the Mongo database name; ignored by SQL drivers.
	Database string `yaml:"database"`
	// Revisions is how many saved revisions are kept per document.
	Revisions int `yaml:"revisions"`
}

// HistoryConfig bounds the in-memory undo stack of each session.
type HistoryConfig struct {
	Limit int `yaml:"limit"` // 0 = unbounded
}

// AutosaveConfig configures periodic saving of dirty sessions.
type AutosaveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron spec, seconds field optional
}

// RegistryConfig points at a custom component catalog.
type RegistryConfig struct {
	CatalogPath string `yaml:"catalog_path"` // empty = embedded catalog
}

// WatchConfig enables reloading of exported document files.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty = disabled
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// ValidDrivers lists the supported storage drivers.
var ValidDrivers = []string{"sqlite", "postgres", "mysql", "mongodb"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	dataDir := ".pagebuilder"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".pagebuilder")
	}
	return &Config{
		DataDir: dataDir,
		Database: DatabaseConfig{
			Driver:    "sqlite",
			Database:  "pagebuilder",
			Revisions: 40,
		},
		History: HistoryConfig{Limit: 100},
		Autosave: AutosaveConfig{
			Enabled:  true,
			Schedule: "@every 30s",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PAGEBUILDER_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("PAGEBUILDER_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("PAGEBUILDER_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("PAGEBUILDER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	valid := false
	for _, d := range ValidDrivers {
		if c.Database.Driver == d {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid database driver: %s (valid: %v)", c.Database.Driver, ValidDrivers)
	}
	if c.Database.Driver != "sqlite" && c.Database.DSN == "" {
		return fmt.Errorf("database dsn required for driver %s", c.Database.Driver)
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" && c.DataDir == "" {
		return fmt.Errorf("data_dir required for the default sqlite database")
	}
	if c.History.Limit < 0 {
		return fmt.Errorf("history limit must not be negative: %d", c.History.Limit)
	}
	if c.Database.Revisions < 0 {
		return fmt.Errorf("revision limit must not be negative: %d", c.Database.Revisions)
	}
	if c.Autosave.Enabled && strings.TrimSpace(c.Autosave.Schedule) == "" {
		return fmt.Errorf("autosave enabled without a schedule")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

// DSN returns the configured DSN, defaulting to a SQLite file in DataDir.
func (c *Config) DSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	if c.Database.Driver == "sqlite" {
		return filepath.Join(c.DataDir, "pagebuilder.db")
	}
	return ""
}

// ExportDir is where file-synced documents are written.
func (c *Config) ExportDir() string {
	return filepath.Join(c.DataDir, "documents")
}
