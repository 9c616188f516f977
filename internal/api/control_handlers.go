package api

import (
	"net/http"
	"time"

	netlaberrors "github.com/kestrelnet/netlab/internal/errors"
)

type tickRequest struct {
	Ticks int `json:"ticks"`
}

// handleTick advances the engine by the requested number of ticks
// (default 1), synchronously: the caller gets a response once every
// tick has run.
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	var req tickRequest
	_ = decodeJSON(r, &req)
	n := req.Ticks
	if n <= 0 {
		n = 1
	}
	s.Engine.Run(n)
	respondWithJSON(w, http.StatusOK, map[string]any{"ticks": n, "currentTick": s.Engine.Clock.Tick()})
}

type pingRequest struct {
	DeviceID  string `json:"deviceId"`
	Interface string `json:"interface"`
	DstIP     string `json:"dstIp"`
	Count     int    `json:"count"`
	TimeoutMS int    `json:"timeoutMs"`
}

// handlePing runs a ping session to completion and returns the
// summary plus the per-sequence results; the websocket stream carries
// the same events.Event occurrences as they happen tick by tick.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var req pingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindValidation, "decode request"))
		return
	}
	count := req.Count
	if count <= 0 {
		count = 4
	}
	timeout := time.Duration(req.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	sess, err := s.Engine.Ping(req.DeviceID, req.Interface, req.DstIP, count, timeout)
	if err != nil {
		respondWithError(w, err)
		return
	}

	var results []any
	for res := range sess.Results {
		results = append(results, res)
	}
	summary := <-sess.Done
	respondWithJSON(w, http.StatusOK, map[string]any{"results": results, "summary": summary})
}

type dhcpRequestRequest struct {
	DeviceID  string `json:"deviceId"`
	Interface string `json:"interface"`
	TimeoutMS int    `json:"timeoutMs"`
}

// handleDHCPRequest runs a requestDhcp session to completion and
// returns its text summary: the granted lease's IP/mask/gateway/DNS/
// lease time/server identity on success, or the failure string spec.md
// §8 calls for (pool exhaustion, timeout) when it doesn't resolve.
func (s *Server) handleDHCPRequest(w http.ResponseWriter, r *http.Request) {
	var req dhcpRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindValidation, "decode request"))
		return
	}
	timeout := time.Duration(req.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	sess, err := s.Engine.RequestDHCPLease(req.DeviceID, req.Interface, timeout)
	if err != nil {
		respondWithError(w, err)
		return
	}

	summary := <-sess.Done
	status := http.StatusOK
	if !summary.Success {
		status = http.StatusUnprocessableEntity
	}
	respondWithJSON(w, status, summary)
}

func (s *Server) handleDHCPRelease(w http.ResponseWriter, r *http.Request) {
	var req dhcpRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindValidation, "decode request"))
		return
	}
	if err := s.Engine.ReleaseDHCPLease(req.DeviceID, req.Interface); err != nil {
		respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dnsConfigureRequest struct {
	DeviceID string `json:"deviceId"`
	Domain   string `json:"domain"`
	IP       string `json:"ip"`
}

func (s *Server) handleDNSConfigure(w http.ResponseWriter, r *http.Request) {
	var req dnsConfigureRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindValidation, "decode request"))
		return
	}
	if err := s.Engine.ConfigureDNSRecord(req.DeviceID, req.Domain, req.IP); err != nil {
		respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dnsResolveRequest struct {
	DeviceID  string `json:"deviceId"`
	Interface string `json:"interface"`
	ServerIP  string `json:"serverIp"`
	Domain    string `json:"domain"`
}

func (s *Server) handleDNSResolve(w http.ResponseWriter, r *http.Request) {
	var req dnsResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindValidation, "decode request"))
		return
	}
	if err := s.Engine.ResolveDNS(req.DeviceID, req.Interface, req.ServerIP, req.Domain); err != nil {
		respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type tcpListenRequest struct {
	DeviceID string `json:"deviceId"`
	LocalIP  string `json:"localIp"`
	Port     int    `json:"port"`
}

func (s *Server) handleTCPListen(w http.ResponseWriter, r *http.Request) {
	var req tcpListenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindValidation, "decode request"))
		return
	}
	if err := s.Engine.TCPListen(req.DeviceID, req.LocalIP, req.Port); err != nil {
		respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tcpConnectRequest struct {
	DeviceID   string `json:"deviceId"`
	LocalIP    string `json:"localIp"`
	RemoteIP   string `json:"remoteIp"`
	RemotePort int    `json:"remotePort"`
}

func (s *Server) handleTCPConnect(w http.ResponseWriter, r *http.Request) {
	var req tcpConnectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindValidation, "decode request"))
		return
	}
	if err := s.Engine.TCPConnect(req.DeviceID, req.LocalIP, req.RemoteIP, req.RemotePort); err != nil {
		respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSTPConverge(w http.ResponseWriter, r *http.Request) {
	s.Engine.RunSTPConvergence()
	w.WriteHeader(http.StatusNoContent)
}
