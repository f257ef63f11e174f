package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hz-b/phoebusalarm/internal/logger"
)

// Config holds converter settings shared by all conversions in a run.
type Config struct {
	// DisplayCommand is the external command emitted in legacy output to open
	// converted display files.
	DisplayCommand string `yaml:"display_command"`
	// LogLevel is the minimum diagnostic level (debug, info, warn, error, fatal).
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the settings file looked up when no explicit
	// path is given.
	DefaultConfigFilename = "phoebusalarm-settings.yaml"

	// DefaultDisplayCommand opens legacy display files on the operator consoles.
	DefaultDisplayCommand = "run_edm.sh"

	// DefaultLogLevel keeps conversions quiet unless something needs attention.
	DefaultLogLevel = "warn"
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// Default returns settings with all fields at their defaults.
func Default() *Config {
	return &Config{
		DisplayCommand: DefaultDisplayCommand,
		LogLevel:       DefaultLogLevel,
	}
}

// Load reads converter settings from the provided path and validates them.
// An empty path loads DefaultConfigFilename when that file exists and falls
// back to defaults otherwise; an explicit path must be readable.
func Load(path string) (*Config, error) {
	if path == "" {
		if _, err := os.Stat(DefaultConfigFilename); err != nil {
			return Default(), nil
		}

		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fills defaults for empty fields and rejects invalid values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.DisplayCommand == "" {
		cfg.DisplayCommand = DefaultDisplayCommand
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	return nil
}
