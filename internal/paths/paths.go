// Package paths resolves the on-disk layout of ork state files,
// honoring environment overrides. Both the CLI and the hook binary
// resolve paths through here so they always agree on where state lives.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// OrkDir is the default state directory name under $HOME.
const OrkDir = ".ork"

// Paths holds all resolved ork state file paths.
// Use Resolve() to populate this struct with defaults + env overrides.
type Paths struct {
	OrkHome         string // ~/.ork or ORK_HOME
	ConfigPath      string // config.toml or ORK_CONFIG_PATH
	BundlesPath     string // bundles.yaml or ORK_BUNDLES_PATH
	StateDBPath     string // state.db or ORK_DB_PATH
	CalibrationPath string // calibration.json or ORK_CALIBRATION_PATH
	UsageDir        string // usage/ (respects ORK_HOME)
	CheckpointDir   string // checkpoints/ (respects ORK_HOME)
	SessionDir      string // session/ (respects ORK_HOME)
}

// Resolve returns all ork paths, respecting env var overrides.
// Environment variables:
//   - ORK_HOME: base directory for all ork state (default: ~/.ork)
//   - ORK_CONFIG_PATH: runtime config file (default: $ORK_HOME/config.toml)
//   - ORK_BUNDLES_PATH: bundle config file (default: $ORK_HOME/bundles.yaml)
//   - ORK_DB_PATH: pipeline state database (default: $ORK_HOME/state.db)
//   - ORK_CALIBRATION_PATH: calibration store (default: $ORK_HOME/calibration.json)
//
// If ORK_HOME is set, it becomes the base for all default paths.
// Specific env vars (ORK_DB_PATH, etc.) override both the default and ORK_HOME base.
func Resolve() (*Paths, error) {
	orkHome, err := resolveOrkHome()
	if err != nil {
		return nil, err
	}

	return &Paths{
		OrkHome:         orkHome,
		ConfigPath:      resolvePathWithEnv("ORK_CONFIG_PATH", orkHome, "config.toml"),
		BundlesPath:     resolvePathWithEnv("ORK_BUNDLES_PATH", orkHome, "bundles.yaml"),
		StateDBPath:     resolvePathWithEnv("ORK_DB_PATH", orkHome, "state.db"),
		CalibrationPath: resolvePathWithEnv("ORK_CALIBRATION_PATH", orkHome, "calibration.json"),
		UsageDir:        filepath.Join(orkHome, "usage"),
		CheckpointDir:   filepath.Join(orkHome, "checkpoints"),
		SessionDir:      filepath.Join(orkHome, "session"),
	}, nil
}

// EnsureHome creates the base state directory if it does not exist.
func (p *Paths) EnsureHome() error {
	if err := os.MkdirAll(p.OrkHome, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return nil
}

// resolveOrkHome returns the ork home directory from ORK_HOME env var or ~/.ork.
func resolveOrkHome() (string, error) {
	if v := os.Getenv("ORK_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, OrkDir), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
