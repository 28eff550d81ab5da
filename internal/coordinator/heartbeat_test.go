package coordinator

import (
	"testing"
	"time"
)

func TestHeartbeatTickerAdvances(t *testing.T) {
	h := NewHeartbeatTicker(10 * time.Millisecond)
	defer h.Stop()

	_, startVersion, changed := h.Watch()

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("heartbeat never ticked within 1s")
	}

	_, version, _ := h.Watch()
	if version == startVersion {
		t.Error("version unchanged after a tick was observed")
	}
}

func TestHeartbeatTickerStopHaltsTicks(t *testing.T) {
	h := NewHeartbeatTicker(5 * time.Millisecond)
	_, _, changed := h.Watch()
	<-changed // wait for at least one tick

	h.Stop()
	_, versionAfterStop, changed := h.Watch()

	select {
	case <-changed:
		t.Error("heartbeat ticked again after Stop")
	case <-time.After(50 * time.Millisecond):
	}

	_, versionLater, _ := h.Watch()
	if versionLater != versionAfterStop {
		t.Error("version advanced after Stop")
	}
}
