package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks default filling and log level validation.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Nil settings.
	err := Validate(nil)
	require.Error(t, err)

	// Empty fields pick up defaults.
	cfg := new(Config)

	err = Validate(cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultDisplayCommand, cfg.DisplayCommand)
	require.Equal(t, DefaultLogLevel, cfg.LogLevel)

	// Bad log level.
	cfg = &Config{LogLevel: "loud"}

	err = Validate(cfg)
	require.Error(t, err)
}

// TestLoad ensures settings are read from YAML and validated.
func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	contents := "display_command: run_css.sh\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "run_css.sh", cfg.DisplayCommand)
	require.Equal(t, "debug", cfg.LogLevel)

	// Explicit path must exist.
	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

// TestLoad_NoPath falls back to defaults when no settings file is present.
func TestLoad_NoPath(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	// Run from an empty directory so the default filename cannot be found.
	require.NoError(t, os.Chdir(t.TempDir()))
	defer func() {
		require.NoError(t, os.Chdir(cwd))
	}()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}
