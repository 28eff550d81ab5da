package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Coordinator.ControlPort != 5555 {
		t.Errorf("Coordinator.ControlPort = %d, want 5555", cfg.Coordinator.ControlPort)
	}
	if cfg.Coordinator.WorkerPort != 5556 {
		t.Errorf("Coordinator.WorkerPort = %d, want 5556", cfg.Coordinator.WorkerPort)
	}
	if cfg.Coordinator.HeartbeatPeriod != 5*time.Second {
		t.Errorf("Coordinator.HeartbeatPeriod = %s, want 5s", cfg.Coordinator.HeartbeatPeriod)
	}
	if cfg.Worker.SnapshotPeriod != 5*time.Second {
		t.Errorf("Worker.SnapshotPeriod = %s, want 5s", cfg.Worker.SnapshotPeriod)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Coordinator.ControlPort != 5555 {
		t.Errorf("Coordinator.ControlPort = %d, want 5555", cfg.Coordinator.ControlPort)
	}
}

func TestLoadPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "coordinator:\n  control_port: 9999\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Coordinator.ControlPort != 9999 {
		t.Errorf("Coordinator.ControlPort = %d, want 9999", cfg.Coordinator.ControlPort)
	}
	// Untouched fields keep their defaults.
	if cfg.Coordinator.WorkerPort != 5556 {
		t.Errorf("Coordinator.WorkerPort = %d, want 5556 (default preserved)", cfg.Coordinator.WorkerPort)
	}
}

func TestDiffReportsChangedFields(t *testing.T) {
	old := defaultConfig()
	updated := defaultConfig()
	updated.Coordinator.ControlPort = 9999
	updated.Worker.SnapshotPeriod = 10 * time.Second

	changes := Diff(old, updated)
	if len(changes) != 2 {
		t.Fatalf("Diff returned %d changes, want 2: %v", len(changes), changes)
	}
}

func TestDiffNoChanges(t *testing.T) {
	old := defaultConfig()
	same := defaultConfig()

	if changes := Diff(old, same); len(changes) != 0 {
		t.Errorf("Diff(equal configs) = %v, want empty", changes)
	}
}
