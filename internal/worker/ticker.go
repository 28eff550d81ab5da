package worker

import (
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/tempestgen/tempest/internal/latest"
	"github.com/tempestgen/tempest/internal/proto"
)

// SnapshotPeriod is the interval between worker-emitted stats snapshots,
// per spec.md §4.6.
const SnapshotPeriod = 5 * time.Second

// SnapshotTicker periodically reads LatencyStats and publishes a
// decorated Status through a latest.Value, per spec.md §4.6. Bounded
// memory: publishes do not accumulate, they overwrite.
type SnapshotTicker struct {
	stats    *LatencyStats
	hostname *string
	snapshot *latest.Value[proto.Status]
	ticker   *time.Ticker
	done     chan struct{}
}

// NewSnapshotTicker starts publishing snapshots every period. The local
// hostname is resolved once at startup via gopsutil; if unavailable it
// is left nil, per spec.md §4.6.
func NewSnapshotTicker(stats *LatencyStats, period time.Duration) *SnapshotTicker {
	t := &SnapshotTicker{
		stats:    stats,
		hostname: discoverHostname(),
		snapshot: latest.New(stats.AsSnapshot()),
		ticker:   time.NewTicker(period),
		done:     make(chan struct{}),
	}
	go t.run()
	return t
}

func discoverHostname() *string {
	info, err := host.Info()
	if err != nil || info.Hostname == "" {
		return nil
	}
	name := info.Hostname
	return &name
}

func (t *SnapshotTicker) run() {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C:
			snap := t.stats.AsSnapshot()
			snap.Hostname = t.hostname
			t.snapshot.Set(snap)
		}
	}
}

// Watch exposes the underlying latest.Value for the SessionClient's
// merge loop.
func (t *SnapshotTicker) Watch() (value proto.Status, version uint64, changed <-chan struct{}) {
	return t.snapshot.Watch()
}

// Stop halts the ticker.
func (t *SnapshotTicker) Stop() {
	t.ticker.Stop()
	close(t.done)
}
