package worker

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/tempestgen/tempest/internal/proto"
	"github.com/tempestgen/tempest/internal/transport"
)

// sendQueueDepth bounds a SessionClient's outbound queue, mirroring
// coordinator.sendQueueDepth.
const sendQueueDepth = 16

// SessionClient dials the coordinator's framed endpoint and runs the
// worker side of the merged-event loop from spec.md §4.7: inbound text
// frames decode to Command and go to the CommandDispatcher; outbound
// frames are the stats channel's snapshots, encoded as text (nothing
// else is sent). A dropped connection is retried with exponential backoff
// (github.com/cenkalti/backoff/v4) until the process is told to stop.
type SessionClient struct {
	coordinatorURL string
	dispatcher     *CommandDispatcher
	ticker         *SnapshotTicker
}

// NewSessionClient builds a client that will dial coordinatorURL
// (ws://host:port form) and drive dispatcher/ticker once connected.
func NewSessionClient(coordinatorURL string, dispatcher *CommandDispatcher, ticker *SnapshotTicker) *SessionClient {
	return &SessionClient{coordinatorURL: coordinatorURL, dispatcher: dispatcher, ticker: ticker}
}

// RunForever dials, runs one session to completion, and reconnects with
// backoff, until ctx is cancelled. It returns only when ctx is done.
func (c *SessionClient) RunForever(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0 // retry indefinitely; spec.md §4.7 has no giving-up state

	for {
		if ctx.Err() != nil {
			return
		}
		stream, err := c.dial(ctx)
		if err != nil {
			wait := b.NextBackOff()
			log.Printf("worker: dial %s failed: %v, retrying in %s", c.coordinatorURL, err, wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()
		c.runSession(ctx, stream)
	}
}

func (c *SessionClient) dial(ctx context.Context) (transport.Stream, error) {
	u, err := url.Parse(c.coordinatorURL)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return transport.NewWebSocketStream(conn), nil
}

// runSession runs one connection's merge loop to completion: inbound
// Command frames dispatch to the CommandDispatcher; a SnapshotTicker
// change enqueues a fresh Status frame outbound. It returns when the
// stream closes, errors, or ctx is cancelled.
func (c *SessionClient) runSession(ctx context.Context, stream transport.Stream) {
	send := make(chan []byte, sendQueueDepth)
	incoming := make(chan transport.Frame, 1)
	readErr := make(chan error, 1)
	quit := make(chan struct{})
	go readLoop(stream, incoming, readErr, quit)

	snapVal, _, snapChanged := c.ticker.Watch()
	enqueueSnapshot(send, snapVal)

	writerDone := make(chan error, 1)
	go writePump(stream, send, writerDone)

	defer func() {
		close(quit)
		close(send)
		stream.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case frame, ok := <-incoming:
			if !ok {
				return
			}
			if handleFrame(frame, c.dispatcher) {
				return
			}

		case err := <-readErr:
			if err != nil {
				log.Printf("worker: session read error: %v", err)
			}
			return

		case <-snapChanged:
			snapVal, _, snapChanged = c.ticker.Watch()
			enqueueSnapshot(send, snapVal)

		case err := <-writerDone:
			if err != nil {
				log.Printf("worker: session write error: %v", err)
			}
			return
		}
	}
}

func readLoop(stream transport.Stream, out chan<- transport.Frame, errs chan<- error, quit <-chan struct{}) {
	defer close(out)
	for {
		frame, err := stream.ReadFrame()
		if err != nil {
			errs <- err
			return
		}
		select {
		case out <- frame:
		case <-quit:
			return
		}
		if frame.Kind == transport.FrameClose {
			errs <- nil
			return
		}
	}
}

// handleFrame processes one inbound frame, returning true when the
// session should terminate.
func handleFrame(frame transport.Frame, dispatcher *CommandDispatcher) bool {
	switch frame.Kind {
	case transport.FramePing, transport.FramePong:
		return false
	case transport.FrameClose:
		return true
	case transport.FrameText:
		var cmd proto.Command
		if err := json.Unmarshal(frame.Data, &cmd); err != nil {
			log.Printf("worker: command decode error: %v", err)
			return true
		}
		dispatcher.Dispatch(cmd)
		return false
	default:
		log.Printf("worker: protocol violation: unexpected frame kind")
		return true
	}
}

func enqueueSnapshot(send chan<- []byte, status proto.Status) {
	data, err := json.Marshal(status)
	if err != nil {
		log.Printf("worker: status marshal error: %v", err)
		return
	}
	select {
	case send <- data:
	default:
		log.Printf("worker: send queue full, dropping stats snapshot")
	}
}

// writePump drains send to the socket and is the sole writer of the
// outbound half of stream.
func writePump(stream transport.Stream, send <-chan []byte, done chan<- error) {
	for data := range send {
		if err := stream.WriteText(data); err != nil {
			done <- err
			return
		}
	}
	done <- nil
}
