package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"swim_feed/internal/fanout"
	"swim_feed/internal/flightstate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Trust boundary is the network; any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection, sends an initial snapshot of
// every current flight, then streams envelopes one per text frame until
// the client goes away or a write fails.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	facility := r.URL.Query().Get("facility")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	client := fanout.NewClient("ws:"+r.RemoteAddr, facility, 0)
	s.hub.Add(client)
	defer s.hub.Remove(client)

	// Reader goroutine: we never expect frames from the client, but
	// reading is what detects disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				client.Close()
				return
			}
		}
	}()

	snapshot := flightstate.Envelope{
		Type:    "snapshot",
		Time:    time.Now().UTC(),
		Flights: s.store.Snapshot(),
	}
	if err := writeFrame(conn, snapshot); err != nil {
		return
	}

	for {
		select {
		case <-client.Done():
			return
		case env := <-client.C():
			if err := writeFrame(conn, env); err != nil {
				s.log.Debug("websocket write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, env flightstate.Envelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(env)
}
