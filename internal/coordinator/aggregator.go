package coordinator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tempestgen/tempest/internal/proto"
)

// Aggregator owns the id → SessionRecord map. There is no dedicated
// ingest goroutine: each session's goroutine calls Connect, Insert and
// Disconnect directly, and the ControlAPI calls PruneDisconnected; these
// writes are serialized by the exclusive lock. Readers (the ControlAPI)
// take the shared lock via SnapshotAll.
// Grounded on session/store.go's Store from the teacher and on
// stats_collector_task/StatsCollector in original_source/coordinator.rs
// and stats.rs.
type Aggregator struct {
	mu      sync.RWMutex
	records map[uint32]*SessionRecord
	nextID  atomic.Uint32
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{records: make(map[uint32]*SessionRecord)}
}

// Connect allocates a fresh id for a newly accepted session and inserts a
// SessionRecord in state Connected.
func (a *Aggregator) Connect(peer string) uint32 {
	id := a.nextID.Add(1) - 1
	a.mu.Lock()
	a.records[id] = &SessionRecord{
		ID:          id,
		Peer:        peer,
		ConnectedAt: time.Now(),
		State:       SessionConnected,
	}
	a.mu.Unlock()
	return id
}

// Disconnect marks id's record Disconnected. The record is retained until
// PruneDisconnected removes it.
func (a *Aggregator) Disconnect(id uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.records[id]
	if !ok {
		return
	}
	now := time.Now()
	r.State = SessionDisconnected
	r.Disconnected = &now
}

// Insert folds a received Status into id's record: updates state and
// hostname, and pushes a Snapshot. Returns false if id is absent (e.g. the
// session was pruned concurrently) — callers log and discard per spec.md §7.
func (a *Aggregator) Insert(id uint32, status proto.Status) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.records[id]
	if !ok {
		return false
	}

	switch status.State {
	case proto.StateBusy:
		r.State = SessionBusy
	default:
		r.State = SessionIdle
	}
	if status.Hostname != nil {
		r.Hostname = status.Hostname
	}
	r.pushSnapshot(Snapshot{Timestamp: time.Now(), Status: status})
	return true
}

// PruneDisconnected removes every record currently in state Disconnected.
// A no-op when there are none (idempotent, per spec.md §8).
func (a *Aggregator) PruneDisconnected() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, r := range a.records {
		if r.State == SessionDisconnected {
			delete(a.records, id)
		}
	}
}

// SnapshotAll returns a read-only, deep-enough-to-be-safe copy of every
// record, ordered by id.
func (a *Aggregator) SnapshotAll() []*SessionRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*SessionRecord, 0, len(a.records))
	for _, r := range a.records {
		out = append(out, r.clone())
	}
	sortRecordsByID(out)
	return out
}

func sortRecordsByID(records []*SessionRecord) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j].ID < records[j-1].ID; j-- {
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}
