package coordinator

import (
	"time"

	"github.com/tempestgen/tempest/internal/proto"
)

// SessionState is the coordinator's view of a connected worker's coarse
// state, mirroring proto.WorkerState plus the Disconnected terminal state
// spec.md §3 adds on the coordinator side.
type SessionState string

const (
	SessionConnected    SessionState = "Connected"
	SessionIdle         SessionState = "Idle"
	SessionBusy         SessionState = "Busy"
	SessionDisconnected SessionState = "Disconnected"
)

// maxSnapshotHistory bounds SessionRecord.Snapshots per spec.md §3.
const maxSnapshotHistory = 100

// Snapshot is a timestamped projection of a Status received from a worker.
type Snapshot struct {
	Timestamp time.Time    `json:"timestamp"`
	Status    proto.Status `json:"status"`
}

// SessionRecord is the coordinator's per-worker bookkeeping entry.
type SessionRecord struct {
	ID           uint32       `json:"id"`
	Peer         string       `json:"peer"`
	Hostname     *string      `json:"hostname"`
	ConnectedAt  time.Time    `json:"connected_at"`
	Disconnected *time.Time   `json:"disconnected_at,omitempty"`
	State        SessionState `json:"state"`

	// Snapshots is most-recent-first, capped at maxSnapshotHistory.
	Snapshots []Snapshot `json:"-"`
}

// pushSnapshot inserts s at the front of r.Snapshots and truncates to
// maxSnapshotHistory, per spec.md §3's "push-front then truncate" rule.
func (r *SessionRecord) pushSnapshot(s Snapshot) {
	r.Snapshots = append([]Snapshot{s}, r.Snapshots...)
	if len(r.Snapshots) > maxSnapshotHistory {
		r.Snapshots = r.Snapshots[:maxSnapshotHistory]
	}
}

// Latest returns the most recent snapshot, if any.
func (r *SessionRecord) Latest() (Snapshot, bool) {
	if len(r.Snapshots) == 0 {
		return Snapshot{}, false
	}
	return r.Snapshots[0], true
}

// clone returns a copy safe to hand to readers outside the lock: the
// Snapshots slice is copied into a fresh backing array (Hostname still
// points at the same string).
func (r *SessionRecord) clone() *SessionRecord {
	cp := *r
	cp.Snapshots = append([]Snapshot(nil), r.Snapshots...)
	return &cp
}
