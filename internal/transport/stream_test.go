package transport

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newStreamPair starts a local websocket echo-capable server and returns
// connected client/server Streams, for exercising the Stream interface
// end to end without a real coordinator or worker process.
func newStreamPair(t *testing.T) (client, server Stream) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	serverCh := make(chan Stream, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverCh <- NewWebSocketStream(conn)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	u.Scheme = "ws"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	select {
	case server = <-serverCh:
	case <-time.After(time.Second):
		t.Fatal("server side never accepted the connection")
	}

	return NewWebSocketStream(conn), server
}

func TestWriteTextThenReadFrame(t *testing.T) {
	client, server := newStreamPair(t)
	defer client.Close()
	defer server.Close()

	if err := client.WriteText([]byte(`{"Stop":null}`)); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	frame, err := server.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if frame.Kind != FrameText {
		t.Errorf("frame.Kind = %v, want FrameText", frame.Kind)
	}
	if string(frame.Data) != `{"Stop":null}` {
		t.Errorf("frame.Data = %s, want {\"Stop\":null}", frame.Data)
	}
}

func TestRemoteAddrNonEmpty(t *testing.T) {
	client, server := newStreamPair(t)
	defer client.Close()
	defer server.Close()

	if server.RemoteAddr() == "" {
		t.Error("server.RemoteAddr() is empty, want the client's address")
	}
}

func TestCloseFrameObservedAfterWriteClose(t *testing.T) {
	client, server := newStreamPair(t)
	defer client.Close()
	defer server.Close()

	if err := client.WriteClose(); err != nil {
		t.Fatalf("WriteClose: %v", err)
	}

	frame, err := server.ReadFrame()
	if err != nil {
		// gorilla surfaces a close frame as a CloseError from ReadMessage
		// in some configurations; either a FrameClose or an error is an
		// acceptable termination signal for the session loop.
		return
	}
	if frame.Kind != FrameClose {
		t.Errorf("frame.Kind = %v, want FrameClose", frame.Kind)
	}
}
