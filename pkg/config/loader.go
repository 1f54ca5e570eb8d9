package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Start from the built-in defaults
//  2. Load pmm.yaml from configDir, if present
//  3. Expand environment variables
//  4. Merge the user override onto the defaults
//  5. Validate all configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized",
		"retrieval_strategy", cfg.Retrieval.Strategy,
		"supervisor_interval_s", cfg.Supervisor.IntervalS,
		"snapshot_interval", cfg.Thresholds.SnapshotInterval)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	cfg := Default()
	cfg.configDir = configDir

	path := filepath.Join(configDir, "pmm.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No user override file: built-in defaults are a valid configuration.
			return cfg, nil
		}
		return nil, NewLoadError("pmm.yaml", err)
	}

	data = ExpandEnv(data)

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, NewLoadError("pmm.yaml", fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	if err := mergeOverrides(cfg, &override); err != nil {
		return nil, fmt.Errorf("failed to merge pmm.yaml onto defaults: %w", err)
	}

	return cfg, nil
}
