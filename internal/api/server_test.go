package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/kestrelnet/netlab/internal/engine"
	"github.com/kestrelnet/netlab/internal/events"
	"github.com/kestrelnet/netlab/internal/model"
	"github.com/kestrelnet/netlab/internal/simclock"
	"github.com/kestrelnet/netlab/internal/topo"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	w := topo.New()
	clock := simclock.NewDeterministic(time.Unix(0, 0), 1)
	eng := engine.New(w, clock)
	eng.Events = events.NewHub()
	return NewServer(eng)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetDevice(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/devices", createDeviceRequest{Name: "h1", Kind: "pc"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "h1", created.Name)

	rec = doJSON(t, s, http.MethodGet, "/api/devices/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateDeviceRejectsUnknownKind(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/devices", createDeviceRequest{Name: "h1", Kind: "toaster"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDeviceNotFoundReturns404(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/devices/ghost", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteDevice(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/devices", createDeviceRequest{Name: "h1", Kind: "pc"})
	var created model.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, s, http.MethodDelete, "/api/devices/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/devices/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateInterfaceAndConnection(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/devices", createDeviceRequest{Name: "h1", Kind: "pc"})
	var h1 model.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h1))
	rec = doJSON(t, s, http.MethodPost, "/api/devices", createDeviceRequest{Name: "h2", Kind: "pc"})
	var h2 model.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h2))

	rec = doJSON(t, s, http.MethodPost, "/api/devices/"+h1.ID+"/interfaces", createInterfaceRequest{Name: "eth0"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var if1 model.Interface
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &if1))
	require.NotEmpty(t, if1.MAC, "a blank MAC in the request should be auto-generated")

	rec = doJSON(t, s, http.MethodPost, "/api/devices/"+h2.ID+"/interfaces", createInterfaceRequest{Name: "eth0"})
	var if2 model.Interface
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &if2))

	rec = doJSON(t, s, http.MethodPost, "/api/connections", createConnectionRequest{
		AInterfaceID: if1.ID, BInterfaceID: if2.ID, BandwidthMbps: 1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/connections", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var conns []*model.Connection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conns))
	require.Len(t, conns, 1)
}

func TestHandleTickAdvancesClock(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/tick", tickRequest{Ticks: 5})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 5, resp["currentTick"])
}

func TestHandleTickDefaultsToOneTick(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/tick", tickRequest{})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 1, resp["currentTick"])
}

func TestExportThenImportProjectRoundTrips(t *testing.T) {
	s := newTestServer(t)
	doJSON(t, s, http.MethodPost, "/api/devices", createDeviceRequest{Name: "h1", Kind: "pc"})

	rec := doJSON(t, s, http.MethodGet, "/api/project", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	exported := rec.Body.Bytes()

	req := httptest.NewRequest(http.MethodPost, "/api/project", bytes.NewReader(exported))
	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusNoContent, rec2.Code)

	rec3 := doJSON(t, s, http.MethodGet, "/api/devices", nil)
	require.Equal(t, http.StatusOK, rec3.Code)
}

func TestHandleSTPConverge(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/stp/converge", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWebSocketStreamsPublishedEvents(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s)
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	s.Engine.Events.Publish(events.Event{Type: events.ARPResolved, DeviceID: "d1"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg wsMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "arp_resolved", msg.Type)
	require.Equal(t, "d1", msg.DeviceID)
}
