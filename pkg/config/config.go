// Package config loads the runtime settings (config.toml) and the bundle
// configuration (bundles.yaml). Both are thin, read-only inputs: settings
// tune store locations and cadences, bundle config enables/disables shipped
// handlers and overrides matchers. The one hard rule enforced here is the
// execution contract: configuration that would make a denial-capable
// category fire-and-forget is rejected at load time, not discovered at
// dispatch time.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"ork/pkg/bundle"
)

// Config is the runtime settings file, $ORK_HOME/config.toml.
type Config struct {
	// StdinWaitMS bounds the wait for an event payload on stdin.
	StdinWaitMS int `toml:"stdin_wait_ms"`

	Calibration CalibrationConfig `toml:"calibration"`
	Checkpoint  CheckpointConfig  `toml:"checkpoint"`
	Usage       UsageConfig       `toml:"usage"`
}

// CalibrationConfig tunes the calibration engine.
type CalibrationConfig struct {
	Enabled       bool `toml:"enabled"`
	HalfLifeDays  int  `toml:"half_life_days"`
	RetentionDays int  `toml:"retention_days"`
}

// CheckpointConfig tunes the checkpoint controller.
type CheckpointConfig struct {
	// Interval is N in "mini-checkpoint every N completed phases".
	Interval int `toml:"interval"`

	// RetentionDays bounds how long finished runs and their snapshots
	// survive session cleanup.
	RetentionDays int `toml:"retention_days"`
}

// UsageConfig tunes the usage log.
type UsageConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns the shipped settings.
func Default() Config {
	return Config{
		StdinWaitMS: 5000,
		Calibration: CalibrationConfig{Enabled: true, HalfLifeDays: 14, RetentionDays: 30},
		Checkpoint:  CheckpointConfig{Interval: 3, RetentionDays: 14},
		Usage:       UsageConfig{Enabled: true},
	}
}

// Load reads settings from path. A missing file returns the defaults; a
// present but unparseable file is a real error, since silently reverting a
// user's configuration is worse than telling them.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.StdinWaitMS <= 0 {
		cfg.StdinWaitMS = Default().StdinWaitMS
	}
	if cfg.Checkpoint.Interval <= 0 {
		cfg.Checkpoint.Interval = Default().Checkpoint.Interval
	}
	return cfg, nil
}

// Write persists settings as TOML.
func Write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// effectiveContracts applies per-bundle mode overrides from bundle config
// to the shipped table, for validation.
func effectiveContracts(b *Bundles) map[bundle.Category]bundle.Contract {
	table := bundle.ShippedContracts()
	if b == nil {
		return table
	}
	for name, bc := range b.Bundles {
		if bc.Mode == "" {
			continue
		}
		cat := bundle.Category(name)
		c, ok := table[cat]
		if !ok {
			continue
		}
		c.Mode = bundle.Mode(bc.Mode)
		table[cat] = c
	}
	return table
}
