package storage

import (
	"testing"
	"time"

	"swim_feed/internal/flightstate"
)

func TestFlightDBRoundTrip(t *testing.T) {
	db, err := OpenFlightDB("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	f := &flightstate.FlightState{
		Gufi:      "G1",
		Callsign:  "JBU456",
		Origin:    "KBOS",
		Status:    flightstate.StatusActive,
		FirstSeen: now,
		LastSeen:  now,
		ComputerIDs: map[string]string{
			"ZBW": "123",
		},
	}
	if err := db.SaveFlight(f); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Saving again must upsert, not duplicate.
	f.Destination = "KJFK"
	if err := db.SaveFlight(f); err != nil {
		t.Fatalf("save again: %v", err)
	}

	loaded, err := db.LoadFlights()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d flights, want 1", len(loaded))
	}
	got := loaded[0]
	if got.Gufi != "G1" || got.Destination != "KJFK" || got.ComputerIDs["ZBW"] != "123" {
		t.Errorf("loaded flight = %+v", got)
	}

	if err := db.DeleteFlight("G1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	loaded, err = db.LoadFlights()
	if err != nil {
		t.Fatalf("load after delete: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("loaded %d flights after delete, want 0", len(loaded))
	}
}

func TestStaleRowsSkippedOnLoad(t *testing.T) {
	db, err := OpenFlightDB("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	old := &flightstate.FlightState{
		Gufi:     "OLD",
		Status:   flightstate.StatusActive,
		LastSeen: time.Now().UTC().Add(-2 * time.Hour),
	}
	if err := db.SaveFlight(old); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := db.LoadFlights()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("stale row loaded: %+v", loaded)
	}
}
