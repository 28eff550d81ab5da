// Package latest implements a single-writer, many-observer "latest value"
// channel: every observer sees only the most recently published value,
// never a backlog. It is the Go shape of the watch channel the coordinator
// and worker both use for command fan-out, heartbeats, and stats
// publication — superseded values are intentionally coalesced.
package latest

import "sync"

// Value holds a single mutable value of type T plus a notification signal
// observers can wait on. The zero Value is not usable; construct with New.
type Value[T any] struct {
	mu      sync.Mutex
	current T
	version uint64
	changed chan struct{}
}

// New creates a Value initialized to v.
func New[T any](v T) *Value[T] {
	return &Value[T]{
		current: v,
		changed: make(chan struct{}),
	}
}

// Set publishes a new value, waking every observer currently blocked in
// Watch or Next.
func (s *Value[T]) Set(v T) {
	s.mu.Lock()
	s.current = v
	s.version++
	ch := s.changed
	s.changed = make(chan struct{})
	s.mu.Unlock()
	close(ch)
}

// Get returns the current value without blocking.
func (s *Value[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Watch returns the current value and version, plus a channel that closes
// the next time Set is called. Callers select on the channel to be woken,
// then call Watch again to read the (possibly further-updated) value —
// intermediate values between two Watch calls are coalesced, never queued.
func (s *Value[T]) Watch() (value T, version uint64, changed <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.version, s.changed
}

// Next blocks until a value newer than lastVersion is published (or ctx
// behavior is left to the caller via the returned channel in Watch), then
// returns it. It is a convenience wrapper for simple single-goroutine
// observers that don't need a select-driven merge loop.
func (s *Value[T]) Next(lastVersion uint64) (value T, version uint64) {
	for {
		v, ver, changed := s.Watch()
		if ver != lastVersion {
			return v, ver
		}
		<-changed
	}
}
