package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsMessage is the JSON shape pushed to every connected observer: one
// message per events.Event, letting a TUI or browser client render
// packet positions/state changes as they happen instead of polling.
type wsMessage struct {
	Type       string         `json:"type"`
	DeviceID   string         `json:"deviceId,omitempty"`
	PacketID   string         `json:"packetId,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// handleWebSocket upgrades the connection and streams events.Hub
// occurrences to it until the client disconnects, grounded on the
// teacher's handleWebSocket/writePump/readPump split: one goroutine
// drains the hub into the socket, the read loop only waits for the
// connection to close (no client-to-server protocol here).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.Engine.Events == nil {
		return
	}
	sub := s.Engine.Events.Subscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case ev := <-sub:
			msg := wsMessage{
				Type: ev.Type.String(), DeviceID: ev.DeviceID, PacketID: ev.PacketID,
				Attributes: ev.Attributes, Timestamp: time.Now(),
			}
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
