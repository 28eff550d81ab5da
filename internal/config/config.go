// Package config loads tempest's coordinator and worker settings from a
// YAML file, with built-in defaults matching spec.md §6's CLI invocation
// rule (control API on 0.0.0.0:5555, worker endpoint on 0.0.0.0:5556).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of both tempest roles. A single file covers
// both because a binary built from this module can run as either,
// selected at invocation time per spec.md §6.
type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Worker      WorkerConfig      `yaml:"worker"`
}

// CoordinatorConfig controls the two listeners a coordinator process
// opens: the operator-facing HTTP control API and the worker-facing
// framed session endpoint.
type CoordinatorConfig struct {
	ControlHost     string        `yaml:"control_host"`
	ControlPort     int           `yaml:"control_port"`
	WorkerHost      string        `yaml:"worker_host"`
	WorkerPort      int           `yaml:"worker_port"`
	HeartbeatPeriod time.Duration `yaml:"heartbeat_period"`
}

// WorkerConfig controls a worker process's reporting cadence and HTTP
// client behavior.
type WorkerConfig struct {
	SnapshotPeriod time.Duration `yaml:"snapshot_period"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
}

// Load reads and parses the YAML file at path, layering it over the
// built-in defaults so a partial file only overrides what it names.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault loads config from path, or returns the built-in defaults
// if path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return Load(path)
}

func defaultConfig() *Config {
	return &Config{
		Coordinator: CoordinatorConfig{
			ControlHost:     "0.0.0.0",
			ControlPort:     5555,
			WorkerHost:      "0.0.0.0",
			WorkerPort:      5556,
			HeartbeatPeriod: 5 * time.Second,
		},
		Worker: WorkerConfig{
			SnapshotPeriod: 5 * time.Second,
			HTTPTimeout:    30 * time.Second,
		},
	}
}

// Diff compares two configs and returns human-readable descriptions of
// what changed, for startup logging when a config file overrides a
// default.
func Diff(old, new *Config) []string {
	var changes []string

	if old.Coordinator.ControlHost != new.Coordinator.ControlHost || old.Coordinator.ControlPort != new.Coordinator.ControlPort {
		changes = append(changes, fmt.Sprintf("coordinator.control: %s:%d → %s:%d",
			old.Coordinator.ControlHost, old.Coordinator.ControlPort, new.Coordinator.ControlHost, new.Coordinator.ControlPort))
	}
	if old.Coordinator.WorkerHost != new.Coordinator.WorkerHost || old.Coordinator.WorkerPort != new.Coordinator.WorkerPort {
		changes = append(changes, fmt.Sprintf("coordinator.worker: %s:%d → %s:%d",
			old.Coordinator.WorkerHost, old.Coordinator.WorkerPort, new.Coordinator.WorkerHost, new.Coordinator.WorkerPort))
	}
	if old.Coordinator.HeartbeatPeriod != new.Coordinator.HeartbeatPeriod {
		changes = append(changes, fmt.Sprintf("coordinator.heartbeat_period: %s → %s", old.Coordinator.HeartbeatPeriod, new.Coordinator.HeartbeatPeriod))
	}
	if old.Worker.SnapshotPeriod != new.Worker.SnapshotPeriod {
		changes = append(changes, fmt.Sprintf("worker.snapshot_period: %s → %s", old.Worker.SnapshotPeriod, new.Worker.SnapshotPeriod))
	}
	if old.Worker.HTTPTimeout != new.Worker.HTTPTimeout {
		changes = append(changes, fmt.Sprintf("worker.http_timeout: %s → %s", old.Worker.HTTPTimeout, new.Worker.HTTPTimeout))
	}

	return changes
}

func defaultConfigDir() string {
	if value := os.Getenv("XDG_CONFIG_HOME"); value != "" {
		return value
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config")
}

// DefaultConfigPath returns the default XDG-compliant config file path.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "tempest", "config.yaml")
}
