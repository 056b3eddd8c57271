// Package config loads activitydb settings from a YAML file and the
// environment, and resolves where the database file lives.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/activitydb/internal/store"
)

// Environment variables read by Load.
const (
	EnvDataDir  = "ACTIVITYDB_DATA_DIR"
	EnvDBPath   = "ACTIVITYDB_DB_PATH"
	EnvLogLevel = "ACTIVITYDB_LOG_LEVEL"
)

const (
	defaultDataDir  = "data"
	defaultFilename = "activity.db"

	// FileName is the config file looked up in the data directory.
	FileName = "config.yaml"
)

// Config is the root configuration.
type Config struct {
	// DataDir holds the database file and, optionally, config.yaml.
	DataDir  string         `yaml:"data_dir"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	// Filename is joined to DataDir when Path is empty.
	Filename string `yaml:"filename"`

	// Path overrides DataDir/Filename.
	Path string `yaml:"path"`

	Retries     int           `yaml:"retries"`
	Backoff     time.Duration `yaml:"backoff"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is present,
// with environment overrides applied.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// Load reads configuration and applies environment overrides.
//
// The loading order is:
//  1. Default values
//  2. YAML file values
//  3. Environment variables
//
// An empty path looks for config.yaml in the data directory and falls back
// to defaults when there is none. An explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		dir := cfg.DataDir
		if v := os.Getenv(EnvDataDir); v != "" {
			dir = v
		}
		path = filepath.Join(dir, FileName)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case !explicit && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		DataDir: defaultDataDir,
		Database: DatabaseConfig{
			Filename:    defaultFilename,
			Retries:     store.DefaultRetries,
			Backoff:     store.DefaultBackoff,
			BusyTimeout: store.DefaultBusyTimeout,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies ACTIVITYDB_* variables on top of cfg.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" && (c.DataDir == "" || c.Database.Filename == "") {
		errs = append(errs, "database.path or data_dir and database.filename are required")
	}
	if c.Database.Retries < 1 {
		errs = append(errs, "database.retries must be at least 1")
	}
	if c.Database.Backoff < 0 {
		errs = append(errs, "database.backoff must not be negative")
	}
	if c.Database.BusyTimeout < 0 {
		errs = append(errs, "database.busy_timeout must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q must be debug, info, warn or error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}
	switch strings.ToLower(c.Logging.Output) {
	case "stdout", "stderr":
	default:
		errs = append(errs, fmt.Sprintf("logging.output %q must be stdout or stderr", c.Logging.Output))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DatabasePath returns the database file: database.path if set, otherwise
// data_dir/database.filename.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.DataDir, c.Database.Filename)
}

// GatewayConfig returns the connection settings for store.NewGateway.
func (c *Config) GatewayConfig() store.Config {
	return store.Config{
		Retries:     c.Database.Retries,
		Backoff:     c.Database.Backoff,
		BusyTimeout: c.Database.BusyTimeout,
	}
}
