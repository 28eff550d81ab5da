package coordinator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tempestgen/tempest/internal/proto"
)

func newTestAPI(t *testing.T) (*API, *Hub, *Aggregator) {
	t.Helper()
	aggregator := NewAggregator()
	hub := NewHub(aggregator, 5*time.Second)
	t.Cleanup(hub.Stop)
	return NewAPI(hub, aggregator, nil), hub, aggregator
}

func TestHandleStatsEmpty(t *testing.T) {
	api, _, _ := newTestAPI(t)
	mux := http.NewServeMux()
	api.Routes(mux)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/stats", nil)
	mux.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body struct {
		Items []statsItem `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Items) != 0 {
		t.Errorf("len(items) = %d, want 0", len(body.Items))
	}
}

func TestHandleStartRejectsGet(t *testing.T) {
	api, _, _ := newTestAPI(t)
	mux := http.NewServeMux()
	api.Routes(mux)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/workers/start", nil)
	mux.ServeHTTP(rr, req)

	if rr.Code != 405 {
		t.Errorf("status = %d, want 405", rr.Code)
	}
}

func TestHandleStartBroadcastsCommand(t *testing.T) {
	api, hub, _ := newTestAPI(t)
	mux := http.NewServeMux()
	api.Routes(mux)

	body := `{"urls":["http://example.com"],"max_concurrency":7}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/workers/start", strings.NewReader(body))
	mux.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200, body=%s", rr.Code, rr.Body.String())
	}

	cmdVal, _, _ := hub.command.Watch()
	if cmdVal.Kind != proto.CommandStart {
		t.Fatalf("hub.command.Kind = %q, want Start", cmdVal.Kind)
	}
	if cmdVal.Plan.MaxConcurrency != 7 {
		t.Errorf("Plan.MaxConcurrency = %d, want 7", cmdVal.Plan.MaxConcurrency)
	}
	if len(cmdVal.Plan.Requests) != 1 || cmdVal.Plan.Requests[0].URL != "http://example.com" {
		t.Errorf("Plan.Requests = %+v, want one request to example.com", cmdVal.Plan.Requests)
	}
}

func TestHandleStopBroadcastsStop(t *testing.T) {
	api, hub, _ := newTestAPI(t)
	mux := http.NewServeMux()
	api.Routes(mux)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/workers/stop", nil)
	mux.ServeHTTP(rr, req)

	if rr.Code != 204 {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	cmdVal, _, _ := hub.command.Watch()
	if cmdVal.Kind != proto.CommandStop {
		t.Errorf("hub.command.Kind = %q, want Stop", cmdVal.Kind)
	}
}

func TestHandlePruneRemovesDisconnected(t *testing.T) {
	api, _, aggregator := newTestAPI(t)
	mux := http.NewServeMux()
	api.Routes(mux)

	id := aggregator.Connect("peer")
	aggregator.Disconnect(id)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/workers/prune", nil)
	mux.ServeHTTP(rr, req)

	if rr.Code != 204 {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if records := aggregator.SnapshotAll(); len(records) != 0 {
		t.Errorf("len(records) after prune = %d, want 0", len(records))
	}
}
