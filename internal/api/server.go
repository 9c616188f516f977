// Package api is the HTTP surface for world inspection and tick
// control: device/interface/connection CRUD, tick stepping, the
// per-protocol operations (ping, DHCP, DNS, TCP, STP), project
// import/export, and a websocket stream of packet-position/state
// events. Grounded on the teacher's internal/api/ebpf_handlers.go
// (gorilla/mux router, per-concern RegisterRoutes methods,
// respondWithJSON) and pkg/webui/websocket.go (gorilla/websocket
// upgrader and per-client write pump feeding off a hub channel).
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kestrelnet/netlab/internal/engine"
	"github.com/kestrelnet/netlab/internal/errors"
	"github.com/kestrelnet/netlab/internal/events"
)

// Server wires an engine.Engine to an HTTP router. Engine access isn't
// separately locked here: topo.World and events.Hub are already safe
// for concurrent use from the tick goroutine and any number of HTTP
// handlers.
type Server struct {
	Engine *engine.Engine
	router *mux.Router
}

// NewServer builds a Server and registers all routes.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{Engine: eng, router: mux.NewRouter()}
	s.registerRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/devices", s.handleListDevices).Methods("GET")
	api.HandleFunc("/devices", s.handleCreateDevice).Methods("POST")
	api.HandleFunc("/devices/{id}", s.handleGetDevice).Methods("GET")
	api.HandleFunc("/devices/{id}", s.handleDeleteDevice).Methods("DELETE")
	api.HandleFunc("/devices/{id}/interfaces", s.handleCreateInterface).Methods("POST")

	api.HandleFunc("/connections", s.handleListConnections).Methods("GET")
	api.HandleFunc("/connections", s.handleCreateConnection).Methods("POST")
	api.HandleFunc("/connections/{id}", s.handleDeleteConnection).Methods("DELETE")

	api.HandleFunc("/tick", s.handleTick).Methods("POST")

	api.HandleFunc("/ping", s.handlePing).Methods("POST")
	api.HandleFunc("/dhcp/request", s.handleDHCPRequest).Methods("POST")
	api.HandleFunc("/dhcp/release", s.handleDHCPRelease).Methods("POST")
	api.HandleFunc("/dns/record", s.handleDNSConfigure).Methods("POST")
	api.HandleFunc("/dns/resolve", s.handleDNSResolve).Methods("POST")
	api.HandleFunc("/tcp/listen", s.handleTCPListen).Methods("POST")
	api.HandleFunc("/tcp/connect", s.handleTCPConnect).Methods("POST")
	api.HandleFunc("/stp/converge", s.handleSTPConverge).Methods("POST")

	api.HandleFunc("/project", s.handleExportProject).Methods("GET")
	api.HandleFunc("/project", s.handleImportProject).Methods("POST")

	s.router.HandleFunc("/ws/events", s.handleWebSocket)
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetKind(err) {
	case errors.KindValidation:
		status = http.StatusBadRequest
	case errors.KindNotFound:
		status = http.StatusNotFound
	case errors.KindConflict:
		status = http.StatusConflict
	case errors.KindUnavailable:
		status = http.StatusServiceUnavailable
	case errors.KindTimeout:
		status = http.StatusGatewayTimeout
	}
	respondWithJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// publishDrop lets handlers surface a request-validation failure on
// the same events.Hub a tick-internal drop would use, so the TUI/WS
// observers see user-invoked failures too.
func (s *Server) publishDrop(attrs map[string]any) {
	if s.Engine.Events == nil {
		return
	}
	s.Engine.Events.Publish(events.Event{Type: events.PacketDropped, Attributes: attrs})
}
