package worker

import (
	"testing"
	"time"
)

func TestSnapshotTickerPublishesPeriodically(t *testing.T) {
	stats := NewLatencyStats()
	ticker := NewSnapshotTicker(stats, 10*time.Millisecond)
	defer ticker.Stop()

	_, startVersion, changed := ticker.Watch()

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("SnapshotTicker never published within 1s")
	}

	_, version, _ := ticker.Watch()
	if version == startVersion {
		t.Error("version unchanged after an observed publish")
	}
}

func TestSnapshotTickerReflectsLatencyStats(t *testing.T) {
	stats := NewLatencyStats()
	stats.Start()
	ticker := NewSnapshotTicker(stats, 10*time.Millisecond)
	defer ticker.Stop()

	_, _, changed := ticker.Watch()
	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("SnapshotTicker never published within 1s")
	}

	snap, _, _ := ticker.Watch()
	if snap.State != stats.AsSnapshot().State {
		t.Errorf("published snapshot State = %q, want %q", snap.State, stats.AsSnapshot().State)
	}
}
