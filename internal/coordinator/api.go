package coordinator

import (
	"encoding/json"
	"net/http"

	"github.com/tempestgen/tempest/internal/proto"
)

// API is the coordinator's HTTP/JSON control plane (spec.md §6). It is the
// "external collaborator" the core spec treats as an interface, but a
// runnable coordinator needs it wired end to end, so it is fully
// implemented here in the teacher's plain-net/http style
// (internal/ws/server.go: one *http.ServeMux, one method per route, no
// router framework).
type API struct {
	hub        *Hub
	aggregator *Aggregator
	frontend   http.Handler
}

// NewAPI creates an API bound to hub/aggregator. frontend may be nil, in
// which case "/" and "/static/*" 404.
func NewAPI(hub *Hub, aggregator *Aggregator, frontend http.Handler) *API {
	return &API{hub: hub, aggregator: aggregator, frontend: frontend}
}

// Routes registers the control-plane handlers on mux.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/stats", a.handleStats)
	mux.HandleFunc("/workers/start", a.handleStart)
	mux.HandleFunc("/workers/stop", a.handleStop)
	mux.HandleFunc("/workers/reset", a.handleReset)
	mux.HandleFunc("/workers/prune", a.handlePrune)

	if a.frontend != nil {
		mux.Handle("/", a.frontend)
	}
}

type statsItem struct {
	ID       uint32           `json:"id"`
	Hostname *string          `json:"hostname"`
	Socket   string           `json:"socket"`
	State    SessionState     `json:"state"`
	Latest   *statsItemLatest `json:"latest,omitempty"`
}

// statsItemLatest augments the most recent Snapshot with derived
// per-class rates (count/elapsed_s), per spec.md §6.
type statsItemLatest struct {
	proto.Status
	Rate1xx  float64 `json:"rate_1xx"`
	Rate2xx  float64 `json:"rate_2xx"`
	Rate3xx  float64 `json:"rate_3xx"`
	Rate4xx  float64 `json:"rate_4xx"`
	Rate5xx  float64 `json:"rate_5xx"`
	RateFail float64 `json:"rate_fail"`
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	records := a.aggregator.SnapshotAll()
	items := make([]statsItem, 0, len(records))
	for _, rec := range records {
		item := statsItem{
			ID:       rec.ID,
			Hostname: rec.Hostname,
			Socket:   rec.Peer,
			State:    rec.State,
		}
		if snap, ok := rec.Latest(); ok {
			item.Latest = deriveLatest(snap)
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func deriveLatest(snap Snapshot) *statsItemLatest {
	latest := &statsItemLatest{Status: snap.Status}
	elapsedSeconds := 0.0
	if snap.Status.ElapsedMS != nil && *snap.Status.ElapsedMS > 0 {
		elapsedSeconds = float64(*snap.Status.ElapsedMS) / 1000.0
	}
	if elapsedSeconds <= 0 {
		return latest
	}
	latest.Rate1xx = float64(snap.Status.Count1xx) / elapsedSeconds
	latest.Rate2xx = float64(snap.Status.Count2xx) / elapsedSeconds
	latest.Rate3xx = float64(snap.Status.Count3xx) / elapsedSeconds
	latest.Rate4xx = float64(snap.Status.Count4xx) / elapsedSeconds
	latest.Rate5xx = float64(snap.Status.Count5xx) / elapsedSeconds
	latest.RateFail = float64(snap.Status.CountFail) / elapsedSeconds
	return latest
}

// startRequest is the POST /workers/start body shape, grounded on
// original_source/webserver.rs's StartCommandRequest.
type startRequest struct {
	URLs           []string            `json:"urls,omitempty"`
	Requests       []proto.RequestSpec `json:"requests,omitempty"`
	Strategy       *proto.Strategy     `json:"strategy,omitempty"`
	MaxConcurrency *uint32             `json:"max_concurrency,omitempty"`
}

func (req startRequest) toPlan() proto.AttackPlan {
	strategy := proto.StrategyRandom
	if req.Strategy != nil {
		strategy = *req.Strategy
	}
	maxConcurrency := uint32(50)
	if req.MaxConcurrency != nil {
		maxConcurrency = *req.MaxConcurrency
	}

	requests := req.Requests
	if len(requests) == 0 {
		for _, u := range req.URLs {
			requests = append(requests, proto.RequestSpec{
				Version: proto.HTTP11,
				Method:  proto.MethodGet,
				URL:     u,
				Headers: map[string]string{},
			})
		}
	}

	return proto.AttackPlan{
		Requests:       requests,
		Strategy:       strategy,
		MaxConcurrency: maxConcurrency,
	}
}

func (a *API) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}

	cmd := proto.StartCommand(req.toPlan())
	a.hub.Broadcast(cmd)
	writeJSON(w, http.StatusOK, map[string]any{"command": cmd})
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a.hub.Broadcast(proto.StopCommand())
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a.hub.Broadcast(proto.ResetCommand())
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePrune(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a.aggregator.PruneDisconnected()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
