package worker

import (
	"context"
	"sync"
	"time"

	"github.com/tempestgen/tempest/internal/proto"
)

// CommandDispatcher governs at most one in-flight TaskScheduler per
// spec.md §4.3's NoScheduler/Scheduling state machine. A Start received
// while already Scheduling replaces the running scheduler without
// waiting for it to drain (fire-and-forget shutdown signal); Stop and
// Reset both await the prior scheduler's drain before returning.
type CommandDispatcher struct {
	mu      sync.Mutex
	stats   *LatencyStats
	clients *clientPair

	cancel context.CancelFunc // non-nil while Scheduling
	done   chan struct{}      // closed once the current scheduler has drained
}

// NewCommandDispatcher creates a dispatcher in the NoScheduler state,
// using httpTimeout (internal/config's WorkerConfig.HTTPTimeout) for both
// HTTP clients a TaskScheduler it spawns will dispatch through.
func NewCommandDispatcher(stats *LatencyStats, httpTimeout time.Duration) *CommandDispatcher {
	return &CommandDispatcher{stats: stats, clients: newClientPair(httpTimeout)}
}

// Dispatch applies one Command's transition, per spec.md §4.3's table.
func (d *CommandDispatcher) Dispatch(cmd proto.Command) {
	switch cmd.Kind {
	case proto.CommandStart:
		d.onStart(cmd.Plan)
	case proto.CommandStop:
		d.onStop()
	case proto.CommandReset:
		d.onReset()
	}
}

// onStart handles both NoScheduler+Start and Scheduling+Start: the
// latter signals the running scheduler's shutdown without awaiting its
// drain, then immediately spawns the replacement (Design note in
// spec.md §4.3: "new scheduler starts immediately").
func (d *CommandDispatcher) onStart(plan proto.AttackPlan) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}

	d.stats.Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done

	sch := NewTaskScheduler(plan, d.stats, d.clients)
	go func() {
		sch.Run(ctx)
		sch.Drain()
		close(done)
	}()
}

// onStop handles Scheduling+Stop (signal, await drain, stats.Stop()) and
// NoScheduler+Stop (idempotent no-op beyond stats.Stop()).
func (d *CommandDispatcher) onStop() {
	d.awaitCurrent()
	d.stats.Stop()
}

// onReset handles the Reset row for either state: await any running
// scheduler's drain, then zero every counter via LatencyStats.Reset.
func (d *CommandDispatcher) onReset() {
	d.awaitCurrent()
	d.stats.Reset()
}

// awaitCurrent signals the running scheduler (if any) and blocks until
// it has drained, then clears the dispatcher back to NoScheduler.
func (d *CommandDispatcher) awaitCurrent() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
