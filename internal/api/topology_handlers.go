package api

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	netlaberrors "github.com/kestrelnet/netlab/internal/errors"
	"github.com/kestrelnet/netlab/internal/model"
	"github.com/kestrelnet/netlab/internal/project"
)

// handleListDevices returns the full device list as project.DeviceDoc
// snapshots, reusing the same shape the project export uses.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, project.FromWorld(s.Engine.World).Devices)
}

type createDeviceRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindValidation, "decode request"))
		return
	}
	kind, ok := model.ParseDeviceKind(req.Kind)
	if !ok {
		respondWithError(w, netlaberrors.Errorf(netlaberrors.KindValidation, "unknown device kind %q", req.Kind))
		return
	}
	d := s.Engine.World.AddDevice(req.Name, kind)
	respondWithJSON(w, http.StatusCreated, d)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, ok := s.Engine.World.Device(id)
	if !ok {
		respondWithError(w, netlaberrors.Errorf(netlaberrors.KindNotFound, "device %s not found", id))
		return
	}
	respondWithJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Engine.World.RemoveDevice(id); err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindNotFound, "remove device"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createInterfaceRequest struct {
	Name string `json:"name"`
	MAC  string `json:"mac"`
}

func (s *Server) handleCreateInterface(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	var req createInterfaceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindValidation, "decode request"))
		return
	}
	mac := req.MAC
	if mac == "" {
		mac = s.Engine.World.GenerateMAC()
	}
	iface, err := s.Engine.World.AddInterface(deviceID, req.Name, mac)
	if err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindNotFound, "add interface"))
		return
	}
	respondWithJSON(w, http.StatusCreated, iface)
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.Engine.World.Connections())
}

type createConnectionRequest struct {
	AInterfaceID  string  `json:"aInterfaceId"`
	BInterfaceID  string  `json:"bInterfaceId"`
	BandwidthMbps int     `json:"bandwidthMbps"`
	LatencyMS     int     `json:"latencyMs"`
	LossProb      float64 `json:"lossProb"`
}

func (s *Server) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var req createConnectionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindValidation, "decode request"))
		return
	}
	conn, err := s.Engine.World.Connect(req.AInterfaceID, req.BInterfaceID, req.BandwidthMbps, req.LatencyMS, req.LossProb)
	if err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindConflict, "connect"))
		return
	}
	respondWithJSON(w, http.StatusCreated, conn)
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.Engine.World.RemoveConnection(id); err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindNotFound, "remove connection"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportProject(w http.ResponseWriter, r *http.Request) {
	data, err := project.Save(s.Engine.World)
	if err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindInternal, "export project"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleImportProject(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, netlaberrors.Wrap(err, netlaberrors.KindValidation, "read request body"))
		return
	}
	doc, err := project.Load(data)
	if err != nil {
		respondWithError(w, err)
		return
	}
	world, err := project.ToWorld(doc)
	if err != nil {
		respondWithError(w, err)
		return
	}
	s.Engine.World = world
	w.WriteHeader(http.StatusNoContent)
}
