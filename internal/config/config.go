package config

import "time"

// CurrentConfigVersion is the latest configuration schema version.
// Bump this when adding fields that require migration.
const CurrentConfigVersion = 1

// NodeConfig is the unified YAML configuration for a mesh node process
// (cmd/meshnode). Grounded on the teacher's HomeNodeConfig layering
// (versioned root, nested per-concern structs), narrowed to what a
// mesh node actually configures.
type NodeConfig struct {
	Version   int             `yaml:"version,omitempty"`
	Identity  IdentityConfig  `yaml:"identity"`
	Mesh      MeshConfig      `yaml:"mesh"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// IdentityConfig locates the persistent store backing NodeId/nickname.
type IdentityConfig struct {
	StateFile string `yaml:"state_file"`
	Nickname  string `yaml:"nickname,omitempty"`
}

// MeshConfig holds mesh-engine-level tunables (spec.md §4.3, §4.8).
type MeshConfig struct {
	BroadcastWindow time.Duration `yaml:"broadcast_window,omitempty"` // default: 1500ms
	ScanMode        string        `yaml:"scan_mode,omitempty"`        // "balanced" (default) or "low_latency"
	Simulate        bool          `yaml:"simulate,omitempty"`         // use the in-memory fake Radio instead of a real adapter
}

// TelemetryConfig holds observability settings. Disabled by default
// (opt-in), matching the teacher's TelemetryConfig.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// MetricsConfig controls Prometheus metrics exposure.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"` // default: "127.0.0.1:9091"
}
