// Package worker implements the worker side of tempest: the
// command/execution state machine spec.md §4.3–§4.7 describes —
// CommandDispatcher, TaskScheduler, LatencyStats, SnapshotTicker, and the
// SessionClient that ties them to the coordinator.
package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/tempestgen/tempest/internal/proto"
)

// Histogram bounds, per spec.md §3: the histogram is created for [1, 60000]
// ms with 5 significant digits and never resizes; a sample it cannot
// index (a negative one, or one past the top of its fixed range) is
// dropped (see RecordValue call site).
const (
	histogramMin    = 1
	histogramMax    = 60000
	histogramSigFig = 5
)

// LatencyStats is the worker-side mutable aggregate described in spec.md
// §4.5: a running HDR histogram plus atomic per-class counters, gauges,
// and lifecycle state. Grounded on original_source/stats.rs's
// Stats/StatsInner split (mutex-guarded state and histogram, atomic
// counters read lock-free) and backed by
// github.com/HdrHistogram/hdrhistogram-go rather than a hand-rolled
// bucket histogram.
type LatencyStats struct {
	mu        sync.Mutex
	hist      *hdrhistogram.Histogram
	state     proto.WorkerState
	started   *time.Time
	elapsedMS *int64

	total     atomic.Uint64
	count1xx  atomic.Uint64
	count2xx  atomic.Uint64
	count3xx  atomic.Uint64
	count4xx  atomic.Uint64
	count5xx  atomic.Uint64
	countFail atomic.Uint64

	tasks     atomic.Uint32
	taskQueue atomic.Uint32
	tasksMax  atomic.Uint32
}

// NewLatencyStats returns an idle LatencyStats with an empty histogram.
func NewLatencyStats() *LatencyStats {
	s := &LatencyStats{state: proto.StateIdle}
	s.hist = newHistogram()
	return s
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(histogramMin, histogramMax, histogramSigFig)
}

// Start resets all state (per spec.md §4.5: start() = reset() then set
// Busy/started=now) and marks the worker Busy.
func (s *LatencyStats) Start() {
	s.reset()
	s.mu.Lock()
	now := time.Now()
	s.state = proto.StateBusy
	s.started = &now
	s.mu.Unlock()
}

// Stop freezes elapsed at now-started (if a run was started) and marks
// the worker Idle. Idempotent when no run was started.
func (s *LatencyStats) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started != nil {
		elapsed := time.Since(*s.started).Milliseconds()
		s.elapsedMS = &elapsed
	}
	s.state = proto.StateIdle
}

// Reset clears every counter, the histogram, lifecycle timestamps, and
// gauges, and marks the worker Idle.
func (s *LatencyStats) Reset() {
	s.reset()
}

func (s *LatencyStats) reset() {
	s.mu.Lock()
	s.hist = newHistogram()
	s.state = proto.StateIdle
	s.started = nil
	s.elapsedMS = nil
	s.mu.Unlock()

	s.total.Store(0)
	s.count1xx.Store(0)
	s.count2xx.Store(0)
	s.count3xx.Store(0)
	s.count4xx.Store(0)
	s.count5xx.Store(0)
	s.countFail.Store(0)
	s.tasks.Store(0)
	s.taskQueue.Store(0)
	s.tasksMax.Store(0)
}

// Record folds one HTTP attempt's outcome into the aggregate: status
// nil means a client-side failure (DNS/connect/TLS/protocol), per
// spec.md §4.5. elapsedMS is clamped to the histogram's bounds by
// dropping the sample on a recording error — it is never propagated.
func (s *LatencyStats) Record(status *int, elapsedMS int64) {
	s.total.Add(1)
	switch {
	case status == nil:
		s.countFail.Add(1)
	case *status >= 500:
		s.count5xx.Add(1)
	case *status >= 400:
		s.count4xx.Add(1)
	case *status >= 300:
		s.count3xx.Add(1)
	case *status >= 200:
		s.count2xx.Add(1)
	default:
		s.count1xx.Add(1)
	}

	s.mu.Lock()
	_ = s.hist.RecordValue(elapsedMS) // out-of-range samples are dropped
	s.mu.Unlock()
}

// RecordTaskMax sets the configured concurrency ceiling gauge.
func (s *LatencyStats) RecordTaskMax(n uint32) { s.tasksMax.Store(n) }

// RecordCurrentTasks sets the available-permits gauge (spec.md §4.4 step 2:
// "current = permits-available").
func (s *LatencyStats) RecordCurrentTasks(n uint32) { s.tasks.Store(n) }

// RecordQueueDepth sets the pool-size gauge (spec.md §4.4: "queued = pool
// size," clarified at §9 as pool size, i.e. in-flight, not a deferred
// queue).
func (s *LatencyStats) RecordQueueDepth(n uint32) { s.taskQueue.Store(n) }

// AsSnapshot reads every field into a Status. Per spec.md §4.5, each
// field is individually coherent; there is no cross-field transactional
// guarantee (a snapshot may straddle one concurrent record()).
func (s *LatencyStats) AsSnapshot() proto.Status {
	s.mu.Lock()
	min := float64(s.hist.Min())
	max := float64(s.hist.Max())
	mean := s.hist.Mean()
	stdev := s.hist.StdDev()
	median := float64(s.hist.ValueAtQuantile(50))
	p90 := float64(s.hist.ValueAtQuantile(90))
	state := s.state
	started := s.started
	elapsedMS := s.elapsedMS
	s.mu.Unlock()

	var elapsed *int64
	switch {
	case elapsedMS != nil:
		elapsed = elapsedMS
	case started != nil:
		e := time.Since(*started).Milliseconds()
		elapsed = &e
	}

	return proto.Status{
		State:     state,
		ElapsedMS: elapsed,
		Tasks:     s.tasks.Load(),
		TaskQueue: s.taskQueue.Load(),
		TasksMax:  s.tasksMax.Load(),
		Min:       min,
		Max:       max,
		Mean:      mean,
		Stdev:     stdev,
		Median:    median,
		P90:       p90,
		Count:     s.total.Load(),
		Count1xx:  s.count1xx.Load(),
		Count2xx:  s.count2xx.Load(),
		Count3xx:  s.count3xx.Load(),
		Count4xx:  s.count4xx.Load(),
		Count5xx:  s.count5xx.Load(),
		CountFail: s.countFail.Load(),
	}
}
