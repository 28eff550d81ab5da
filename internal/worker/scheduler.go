package worker

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tempestgen/tempest/internal/proto"
)

// TaskScheduler sustains up to N concurrent HTTP attempts against an
// AttackPlan's requests, per spec.md §4.4 — the hard kernel of the
// worker. Concurrency is bounded by a counting semaphore (a buffered
// channel of permits); in-flight attempts run as ordinary goroutines, the
// Go analogue of the source's spawned-task-pool-plus-select design
// (original_source/worker.rs predates this scheduler entirely — see
// DESIGN.md — so the shape here is grounded instead on
// bpowers-hithere/requester.go's worker-pool/permit bookkeeping from the
// example pack, generalized to match spec.md's per-task-selection +
// cursor design).
type TaskScheduler struct {
	plan    proto.AttackPlan
	stats   *LatencyStats
	clients *clientPair

	cursor atomic.Uint64
	taskID atomic.Uint64

	wg sync.WaitGroup
}

// NewTaskScheduler creates a scheduler for one Start command's plan.
func NewTaskScheduler(plan proto.AttackPlan, stats *LatencyStats, clients *clientPair) *TaskScheduler {
	return &TaskScheduler{plan: plan, stats: stats, clients: clients}
}

// Run is the scheduler's main admission loop (spec.md §4.4 steps 1–5). It
// returns as soon as ctx is done — it does not wait for in-flight tasks;
// call Drain after Run returns to observe the graceful drain completing.
// An empty request list makes Run a no-op, per spec.md §3's invariant.
func (sch *TaskScheduler) Run(ctx context.Context) {
	n := int(sch.plan.Clamped())
	if len(sch.plan.Requests) == 0 {
		return
	}

	tokens := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		tokens <- struct{}{}
	}
	completions := make(chan struct{}, n)
	var inFlight atomic.Int32

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sch.stats.RecordTaskMax(uint32(n))
		sch.stats.RecordCurrentTasks(uint32(len(tokens)))
		sch.stats.RecordQueueDepth(uint32(inFlight.Load()))

		select {
		case <-ctx.Done():
			return
		case <-tokens:
			spec := sch.pick()
			sch.taskID.Add(1)
			inFlight.Add(1)
			sch.wg.Add(1)
			go sch.runTask(spec, tokens, completions, &inFlight)
		case <-completions:
			// Drained task's return is observational only; loop.
		}
	}
}

// Drain blocks until every task spawned by Run has completed and
// released its permit. Called by the CommandDispatcher to observe
// graceful drain on Stop/Reset.
func (sch *TaskScheduler) Drain() {
	sch.wg.Wait()
}

// pick selects the next RequestSpec per the plan's Strategy. InOrder uses
// a scheduler-owned cursor so consecutive tasks cover the list in
// sequence even though each task is dispatched independently.
func (sch *TaskScheduler) pick() proto.RequestSpec {
	requests := sch.plan.Requests
	switch sch.plan.Strategy {
	case proto.StrategyInOrder:
		idx := sch.cursor.Add(1) - 1
		return requests[int(idx%uint64(len(requests)))]
	default:
		return requests[rand.Intn(len(requests))]
	}
}

// runTask executes one HTTP attempt and unconditionally releases its
// permit on every exit path, including a panic inside attempt.
func (sch *TaskScheduler) runTask(spec proto.RequestSpec, tokens chan<- struct{}, completions chan<- struct{}, inFlight *atomic.Int32) {
	defer sch.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker: task panic recovered: %v", r)
		}
		inFlight.Add(-1)
		tokens <- struct{}{}
		select {
		case completions <- struct{}{}:
		default:
		}
	}()

	status, elapsedMS := sch.attempt(spec)
	sch.stats.Record(status, elapsedMS)
}

// attempt performs one HTTP round trip, timing from before dispatch to
// response-headers-received (or the error), per spec.md §4.4 steps 5–7.
// A RequestError (build, connect, protocol) is not retried; it is
// recorded as a nil status (count_fail), per spec.md §7.
func (sch *TaskScheduler) attempt(spec proto.RequestSpec) (*int, int64) {
	req, err := buildRequest(spec)
	if err != nil {
		return nil, 0
	}

	client := sch.clients.http1
	if spec.Version == proto.HTTP2 {
		client = sch.clients.http2
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsedMS := clampMillis(time.Since(start))
	if err != nil {
		return nil, elapsedMS
	}
	defer resp.Body.Close()
	code := resp.StatusCode
	return &code, elapsedMS
}

// clampMillis converts d to milliseconds, clamping to the max int64
// rather than overflowing, per spec.md §7's arithmetic policy.
func clampMillis(d time.Duration) int64 {
	const maxMillis = int64(1<<63 - 1)
	ms := d.Milliseconds()
	if ms < 0 {
		return maxMillis
	}
	return ms
}
