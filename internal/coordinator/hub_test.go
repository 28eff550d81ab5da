package coordinator

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tempestgen/tempest/internal/proto"
	"github.com/tempestgen/tempest/internal/transport"
)

func newTestHub(t *testing.T) (*Hub, *Aggregator, string) {
	t.Helper()
	aggregator := NewAggregator()
	hub := NewHub(aggregator, 5*time.Second)
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(NewWorkerServer(hub))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	u.Scheme = "ws"
	return hub, aggregator, u.String()
}

func dialWorker(t *testing.T, addr string) transport.Stream {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return transport.NewWebSocketStream(conn)
}

func TestHubFirstFrameIsInitialCommand(t *testing.T) {
	_, _, addr := newTestHub(t)
	stream := dialWorker(t, addr)
	defer stream.Close()

	frame, err := stream.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	var cmd proto.Command
	if err := json.Unmarshal(frame.Data, &cmd); err != nil {
		t.Fatalf("decode initial frame: %v", err)
	}
	if cmd.Kind != proto.CommandReset {
		t.Errorf("initial command = %q, want Reset", cmd.Kind)
	}
}

func TestHubIngestsStatusIntoAggregator(t *testing.T) {
	_, aggregator, addr := newTestHub(t)
	stream := dialWorker(t, addr)
	defer stream.Close()

	// Drain the initial broadcast frame before sending.
	if _, err := stream.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame (initial): %v", err)
	}

	status := proto.Status{State: proto.StateBusy, Count: 42}
	data, err := json.Marshal(status)
	if err != nil {
		t.Fatalf("marshal status: %v", err)
	}
	if err := stream.WriteText(data); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		records := aggregator.SnapshotAll()
		if len(records) == 1 {
			if snap, ok := records[0].Latest(); ok && snap.Status.Count == 42 {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("aggregator never observed the ingested status")
}

func TestHubBroadcastReachesSession(t *testing.T) {
	hub, _, addr := newTestHub(t)
	stream := dialWorker(t, addr)
	defer stream.Close()

	if _, err := stream.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame (initial): %v", err)
	}

	plan := proto.AttackPlan{
		Requests:       []proto.RequestSpec{{Version: proto.HTTP11, Method: proto.MethodGet, URL: "http://x", Headers: map[string]string{}}},
		Strategy:       proto.StrategyRandom,
		MaxConcurrency: 4,
	}
	hub.Broadcast(proto.StartCommand(plan))

	frame, err := stream.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame (broadcast): %v", err)
	}
	var cmd proto.Command
	if err := json.Unmarshal(frame.Data, &cmd); err != nil {
		t.Fatalf("decode broadcast frame: %v", err)
	}
	if cmd.Kind != proto.CommandStart {
		t.Errorf("broadcast command = %q, want Start", cmd.Kind)
	}
	if cmd.Plan.MaxConcurrency != 4 {
		t.Errorf("broadcast plan.MaxConcurrency = %d, want 4", cmd.Plan.MaxConcurrency)
	}
}

func TestHubDisconnectMarksSessionDisconnected(t *testing.T) {
	_, aggregator, addr := newTestHub(t)
	stream := dialWorker(t, addr)

	if _, err := stream.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame (initial): %v", err)
	}
	stream.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		records := aggregator.SnapshotAll()
		if len(records) == 1 && records[0].State == SessionDisconnected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("aggregator never observed the session disconnecting")
}
