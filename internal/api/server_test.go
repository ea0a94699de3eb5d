package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"swim_feed/internal/bus"
	"swim_feed/internal/events"
	"swim_feed/internal/fanout"
	"swim_feed/internal/flightstate"
	"swim_feed/internal/swim"
	"swim_feed/internal/trackid"
)

func newTestServer(t *testing.T) (*Server, *flightstate.Store, *fanout.Hub) {
	t.Helper()
	b := bus.New(nil)
	store := flightstate.New(b, nil, flightstate.Config{})
	hub := fanout.NewHub(nil)
	srv := NewServer(Config{}, store, hub, nil, trackid.NewMapper(), nil)
	return srv, store, hub
}

func addFlight(store *flightstate.Store, gufi, callsign string) {
	store.ApplyFlightPlan(events.FlightPlanData{
		Meta:     events.Meta{Time: time.Now().UTC(), Source: swim.ServiceSFDPS},
		Gufi:     gufi,
		Callsign: callsign,
	})
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestFlightLookup(t *testing.T) {
	srv, store, _ := newTestServer(t)
	addFlight(store, "G1", "JBU456")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flights/G1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var f flightstate.FlightState
	if err := json.Unmarshal(rec.Body.Bytes(), &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Callsign != "JBU456" {
		t.Errorf("callsign = %q", f.Callsign)
	}

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flights/NOPE", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown gufi status = %d, want 404", rec.Code)
	}
}

func TestStatsAndDiag(t *testing.T) {
	srv, store, _ := newTestServer(t)
	addFlight(store, "G1", "JBU456")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var stats map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats["activeFlights"].(float64) != 1 {
		t.Errorf("activeFlights = %v", stats["activeFlights"])
	}
	if stats["msgTotal"].(float64) != 1 {
		t.Errorf("msgTotal = %v", stats["msgTotal"])
	}

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/diag", nil))
	var diag map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &diag); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"activeTracks", "connectedClients", "uptimeSec", "timestamp"} {
		if _, ok := diag[key]; !ok {
			t.Errorf("diag missing %q", key)
		}
	}
}

func TestWebSocketSnapshotThenUpdates(t *testing.T) {
	srv, store, hub := newTestServer(t)
	addFlight(store, "G1", "JBU456")

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var snap flightstate.Envelope
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.Type != "snapshot" || len(snap.Flights) != 1 || snap.Flights[0].Gufi != "G1" {
		t.Fatalf("snapshot = %+v", snap)
	}

	// The connect registers asynchronously; wait for it before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(flightstate.Envelope{
		Type: "update", Time: time.Now().UTC(),
		Gufi: "G1", Fields: map[string]any{"origin": "KBOS"},
	})

	var upd flightstate.Envelope
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&upd); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if upd.Type != "update" || upd.Fields["origin"] != "KBOS" {
		t.Errorf("update = %+v", upd)
	}
}

func TestStreamIsFacilityScoped(t *testing.T) {
	srv, _, hub := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/dstars/ZBW/updates", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type = %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// Only the ZBW-scoped envelope may arrive.
	hub.Broadcast(flightstate.Envelope{Type: "update", Gufi: "OTHER", Facility: "ZNY"})
	hub.Broadcast(flightstate.Envelope{Type: "update", Gufi: "MINE", Facility: "zbw"})

	scanner := bufio.NewScanner(resp.Body)
	if !scanner.Scan() {
		t.Fatalf("no line received: %v", scanner.Err())
	}
	var env flightstate.Envelope
	if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if env.Gufi != "MINE" {
		t.Errorf("gufi = %q, want the facility-matched envelope only", env.Gufi)
	}
}
