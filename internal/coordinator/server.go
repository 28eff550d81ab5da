package coordinator

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/tempestgen/tempest/internal/transport"
)

// upgrader has no origin check: the worker channel has no auth per
// spec.md §1's Non-goals. Grounded on internal/ws/server.go's handleWS.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WorkerServer upgrades inbound HTTP connections on the worker endpoint
// to the framed session transport and hands them to the Hub.
type WorkerServer struct {
	hub *Hub
}

// NewWorkerServer creates a server that accepts worker sessions into hub.
func NewWorkerServer(hub *Hub) *WorkerServer {
	return &WorkerServer{hub: hub}
}

// ServeHTTP upgrades the connection and runs the session until it ends.
func (s *WorkerServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("coordinator: upgrade error: %v", err)
		return
	}
	stream := transport.NewWebSocketStream(conn)
	s.hub.AcceptSession(stream)
}

// ListenAndServeWorkers starts the worker-facing endpoint. It blocks.
func ListenAndServeWorkers(host string, port int, hub *Hub) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("coordinator: worker endpoint listening on %s", addr)
	mux := http.NewServeMux()
	mux.Handle("/", NewWorkerServer(hub))
	return http.ListenAndServe(addr, mux)
}

// ListenAndServeControl starts the operator-facing HTTP control plane. It
// blocks.
func ListenAndServeControl(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("coordinator: control API listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
