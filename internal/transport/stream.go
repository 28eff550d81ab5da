// Package transport abstracts the framed, bidirectional message channel
// that connects coordinator and worker. spec.md treats the session
// transport as an external collaborator ("WebSocket-compatible in the
// reference implementation"); this package pins that to a concrete
// gorilla/websocket implementation while keeping the Stream interface
// the rest of the system programs against, so tests can substitute a
// fake.
package transport

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// FrameKind tags the four frame kinds the system cares about; any other
// frame kind is a ProtocolViolation (spec.md §7).
type FrameKind int

const (
	FrameText FrameKind = iota
	FramePing
	FramePong
	FrameClose
)

// Frame is a single message read from a Stream.
type Frame struct {
	Kind FrameKind
	Data []byte
}

// ErrProtocolViolation marks a frame kind the system does not expect to
// receive (anything other than text/ping/pong/close).
var ErrProtocolViolation = errors.New("transport: protocol violation")

// Stream is the abstract bidirectional framed message channel. A single
// goroutine per Stream may call ReadFrame; a single goroutine per Stream
// may call the Write* methods (the owning session's send-queue drainer) —
// concurrent writers are not supported by the underlying connection.
type Stream interface {
	// ReadFrame blocks until the next frame arrives or the connection
	// fails. io.EOF-equivalent errors and decode failures both terminate
	// the caller's session per spec.md §7.
	ReadFrame() (Frame, error)

	WriteText(data []byte) error
	WritePing(data []byte) error
	WritePong(data []byte) error
	WriteClose() error

	// Close releases the underlying connection immediately.
	Close() error

	// RemoteAddr returns the peer's network address, used to stamp
	// Status.Socket on ingest (spec.md §4.1).
	RemoteAddr() string
}

// wsStream adapts a *websocket.Conn to Stream.
type wsStream struct {
	conn *websocket.Conn
}

// NewWebSocketStream wraps an established websocket connection.
func NewWebSocketStream(conn *websocket.Conn) Stream {
	return &wsStream{conn: conn}
}

func (s *wsStream) ReadFrame() (Frame, error) {
	kind, data, err := s.conn.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	switch kind {
	case websocket.TextMessage:
		return Frame{Kind: FrameText, Data: data}, nil
	case websocket.PingMessage:
		return Frame{Kind: FramePing, Data: data}, nil
	case websocket.PongMessage:
		return Frame{Kind: FramePong, Data: data}, nil
	case websocket.CloseMessage:
		return Frame{Kind: FrameClose, Data: data}, nil
	default:
		return Frame{}, ErrProtocolViolation
	}
}

func (s *wsStream) WriteText(data []byte) error {
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsStream) WritePing(data []byte) error {
	return s.conn.WriteMessage(websocket.PingMessage, data)
}

func (s *wsStream) WritePong(data []byte) error {
	return s.conn.WriteMessage(websocket.PongMessage, data)
}

func (s *wsStream) WriteClose() error {
	deadline := time.Now().Add(5 * time.Second)
	return s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}

func (s *wsStream) RemoteAddr() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.RemoteAddr().String()
}
