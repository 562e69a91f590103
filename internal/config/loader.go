package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// checkConfigFilePermissions returns an error if a config file has
// overly permissive permissions (group/world readable), which makes
// Load fail. Grounded on the
// teacher's loader.go of the same name.
func checkConfigFilePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return nil // file access errors are handled by the caller
	}
	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		return fmt.Errorf("config file %s has overly permissive mode %04o; expected 0600 — fix with: chmod 600 %s", path, mode, path)
	}
	return nil
}

// Load reads and parses a NodeConfig from a YAML file at path, applying
// defaults for zero-valued tunables.
func Load(path string) (*NodeConfig, error) {
	if err := checkConfigFilePermissions(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg NodeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Version > CurrentConfigVersion {
		return nil, fmt.Errorf("%w: version %d is newer than supported version %d; please upgrade", ErrConfigVersionTooNew, cfg.Version, CurrentConfigVersion)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a NodeConfig with every tunable set to its default
// value, for callers running without a config file on disk.
func Default() *NodeConfig {
	cfg := &NodeConfig{Version: CurrentConfigVersion}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *NodeConfig) {
	if cfg.Identity.StateFile == "" {
		cfg.Identity.StateFile = "mesh-state.json"
	}
	if cfg.Mesh.BroadcastWindow <= 0 {
		cfg.Mesh.BroadcastWindow = 1500 * time.Millisecond
	}
	if cfg.Mesh.ScanMode == "" {
		cfg.Mesh.ScanMode = "balanced"
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = "127.0.0.1:9091"
	}
}
