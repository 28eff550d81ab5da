package coordinator

import (
	"encoding/json"
	"log"
	"time"

	"github.com/tempestgen/tempest/internal/latest"
	"github.com/tempestgen/tempest/internal/proto"
	"github.com/tempestgen/tempest/internal/transport"
)

// sendQueueDepth bounds a session's outbound queue, mirroring the
// teacher's client.send buffering in internal/ws/broadcast.go.
const sendQueueDepth = 64

// Hub is the coordinator's fan-out broadcast hub (spec.md §4.1): it
// accepts sessions, mediates heartbeat/broadcast/ingest/outbound-write
// per session, and owns connect/disconnect bookkeeping via Aggregator.
//
// Grounded on internal/ws/broadcast.go's Broadcaster (client map, send
// channel, single writePump per client) and on
// original_source/coordinator.rs's handle_connection four-way
// stream::select.
type Hub struct {
	command    *latest.Value[proto.Command]
	heartbeat  *HeartbeatTicker
	aggregator *Aggregator
}

// NewHub creates a Hub with Reset as the initial broadcast command (no
// attack is running until an operator issues Start), heartbeating every
// heartbeatPeriod.
func NewHub(aggregator *Aggregator, heartbeatPeriod time.Duration) *Hub {
	return &Hub{
		command:    latest.New(proto.ResetCommand()),
		heartbeat:  NewHeartbeatTicker(heartbeatPeriod),
		aggregator: aggregator,
	}
}

// Broadcast publishes a new Command to every session's broadcast watcher.
// Intermediate commands may be coalesced for a slow session — latest-wins,
// per spec.md §4.1.
func (h *Hub) Broadcast(cmd proto.Command) {
	h.command.Set(cmd)
}

// Stop halts the hub's heartbeat ticker. Call on coordinator shutdown.
func (h *Hub) Stop() {
	h.heartbeat.Stop()
}

// AcceptSession registers a newly upgraded stream as a worker session and
// runs its merge loop until the session ends. Intended to be called in its
// own goroutine per accepted connection.
func (h *Hub) AcceptSession(stream transport.Stream) {
	id := h.aggregator.Connect(stream.RemoteAddr())
	log.Printf("coordinator: worker session %d connected from %s", id, stream.RemoteAddr())

	s := &session{
		id:     id,
		stream: stream,
		send:   make(chan []byte, sendQueueDepth),
		hub:    h,
	}
	s.run()

	h.aggregator.Disconnect(id)
	log.Printf("coordinator: worker session %d disconnected", id)
}

// session is the per-connection state for one worker. Exactly one
// goroutine (run) owns the merge loop and is the sole writer of the
// outbound half of stream, per spec.md §4.1.
type session struct {
	id     uint32
	stream transport.Stream
	send   chan []byte
	hub    *Hub
}

// run merges four event sources into one serialized handler: inbound
// frames, broadcast-changed, heartbeat-ticked, and the outbound send
// queue. It returns when the session ends (close, read error, decode
// error).
func (s *session) run() {
	incoming := make(chan transport.Frame, 1)
	readErr := make(chan error, 1)
	quit := make(chan struct{})
	go s.readLoop(incoming, readErr, quit)

	cmdVal, _, cmdChanged := s.hub.command.Watch()
	s.enqueueCommand(cmdVal)
	_, _, hbChanged := s.hub.heartbeat.Watch()

	// writerDone signals the write-pump goroutine has exited (e.g. the
	// stream errored), which also terminates the session.
	writerDone := make(chan error, 1)
	go s.writePump(writerDone)

	defer func() {
		close(quit)
		close(s.send)
		s.stream.Close()
	}()

	for {
		select {
		case frame, ok := <-incoming:
			if !ok {
				return
			}
			if s.handleFrame(frame) {
				return
			}

		case err := <-readErr:
			if err != nil {
				log.Printf("coordinator: session %d read error: %v", s.id, err)
			}
			return

		case <-cmdChanged:
			cmdVal, _, cmdChanged = s.hub.command.Watch()
			s.enqueueCommand(cmdVal)

		case <-hbChanged:
			_, _, hbChanged = s.hub.heartbeat.Watch()
			s.enqueuePing()

		case err := <-writerDone:
			if err != nil {
				log.Printf("coordinator: session %d write error: %v", s.id, err)
			}
			return
		}
	}
}

// readLoop reads inbound frames and hands them to the merge loop in run,
// which decodes them (handleFrame). It runs on its own goroutine so the
// merge loop never blocks on a network read.
func (s *session) readLoop(out chan<- transport.Frame, errs chan<- error, quit <-chan struct{}) {
	defer close(out)
	for {
		frame, err := s.stream.ReadFrame()
		if err != nil {
			errs <- err
			return
		}
		select {
		case out <- frame:
		case <-quit:
			// The merge loop already exited; drop.
			return
		}
		if frame.Kind == transport.FrameClose {
			errs <- nil
			return
		}
	}
}

// handleFrame processes one inbound frame. It returns true when the
// session should terminate.
func (s *session) handleFrame(frame transport.Frame) bool {
	switch frame.Kind {
	case transport.FramePing, transport.FramePong:
		return false
	case transport.FrameClose:
		return true
	case transport.FrameText:
		var status proto.Status
		if err := json.Unmarshal(frame.Data, &status); err != nil {
			log.Printf("coordinator: session %d decode error: %v", s.id, err)
			return true
		}
		peer := s.stream.RemoteAddr()
		status.Socket = &peer
		if !s.hub.aggregator.Insert(s.id, status) {
			log.Printf("coordinator: session %d stats insert: id not found (pruned?)", s.id)
		}
		return false
	default:
		log.Printf("coordinator: session %d protocol violation: unexpected frame kind", s.id)
		return true
	}
}

func (s *session) enqueueCommand(cmd proto.Command) {
	data, err := json.Marshal(cmd)
	if err != nil {
		log.Printf("coordinator: session %d command marshal error: %v", s.id, err)
		return
	}
	s.enqueue(data)
}

func (s *session) enqueuePing() {
	// The ping payload is opaque; the transport's own pong is not
	// required for liveness per spec.md §2.
	select {
	case s.send <- nil:
	default:
		log.Printf("coordinator: session %d send queue full, dropping heartbeat", s.id)
	}
}

func (s *session) enqueue(data []byte) {
	select {
	case s.send <- data:
	default:
		log.Printf("coordinator: session %d send queue full, dropping command", s.id)
	}
}

// writePump drains s.send to the socket. nil entries are pings; non-nil
// entries are text frames. It is the sole writer of the outbound half of
// the stream.
func (s *session) writePump(done chan<- error) {
	for data := range s.send {
		var err error
		if data == nil {
			err = s.stream.WritePing(nil)
		} else {
			err = s.stream.WriteText(data)
		}
		if err != nil {
			done <- err
			return
		}
	}
	done <- nil
}
