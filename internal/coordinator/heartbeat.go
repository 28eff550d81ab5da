package coordinator

import (
	"time"

	"github.com/tempestgen/tempest/internal/latest"
)

// HeartbeatPeriod is the interval between coordinator-emitted pings.
// spec.md §9 resolves the source's 1s/5s split in favor of 5s.
const HeartbeatPeriod = 5 * time.Second

// HeartbeatTicker is the single shared ticker every session observes.
// It publishes through a latest.Value so a slow session only ever sees
// "there has been at least one tick since I last looked", matching
// original_source/coordinator.rs's heartbeat_task (a watch::Sender<()>).
type HeartbeatTicker struct {
	tick   *latest.Value[uint64]
	ticker *time.Ticker
	done   chan struct{}
}

// NewHeartbeatTicker starts emitting ticks every period.
func NewHeartbeatTicker(period time.Duration) *HeartbeatTicker {
	h := &HeartbeatTicker{
		tick:   latest.New(uint64(0)),
		ticker: time.NewTicker(period),
		done:   make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *HeartbeatTicker) run() {
	var n uint64
	for {
		select {
		case <-h.done:
			return
		case <-h.ticker.C:
			n++
			h.tick.Set(n)
		}
	}
}

// Watch exposes the underlying latest.Value for a session's merge loop.
func (h *HeartbeatTicker) Watch() (value uint64, version uint64, changed <-chan struct{}) {
	return h.tick.Watch()
}

// Stop halts the ticker.
func (h *HeartbeatTicker) Stop() {
	h.ticker.Stop()
	close(h.done)
}
