// Package storage provides local persistence: a SQLite warm-start store
// for flight state and an optional ClickHouse archive of raw feed
// messages.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"swim_feed/internal/flightstate"
)

// FlightDB persists flight state so a restart does not begin from an
// empty picture. Records are stored as JSON blobs keyed by GUFI; the
// store itself remains the source of truth while the process runs.
type FlightDB struct {
	db *sql.DB
}

// OpenFlightDB opens or creates the warm-start database at path. An
// empty path uses an in-memory database.
func OpenFlightDB(path string) (*FlightDB, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(flightSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &FlightDB{db: db}, nil
}

const flightSchema = `
CREATE TABLE IF NOT EXISTS flights (
	gufi       TEXT PRIMARY KEY,
	callsign   TEXT,
	state_json TEXT NOT NULL,
	last_seen  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_flights_last_seen ON flights(last_seen);
`

// Close closes the database connection.
func (d *FlightDB) Close() error {
	return d.db.Close()
}

// LoadFlights returns flights seen within the last hour. Older rows are
// stale by any measure and are skipped.
func (d *FlightDB) LoadFlights() ([]*flightstate.FlightState, error) {
	rows, err := d.db.Query(`
		SELECT state_json FROM flights
		WHERE last_seen > datetime('now', '-1 hour')
	`)
	if err != nil {
		return nil, fmt.Errorf("load flights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*flightstate.FlightState
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			continue
		}
		var f flightstate.FlightState
		if err := json.Unmarshal([]byte(blob), &f); err != nil {
			continue
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// SaveFlight upserts one flight.
func (d *FlightDB) SaveFlight(f *flightstate.FlightState) error {
	blob, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal flight %s: %w", f.Gufi, err)
	}
	_, err = d.db.Exec(`
		INSERT INTO flights (gufi, callsign, state_json, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(gufi) DO UPDATE SET
			callsign   = excluded.callsign,
			state_json = excluded.state_json,
			last_seen  = excluded.last_seen
	`, f.Gufi, f.Callsign, string(blob), f.LastSeen.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save flight %s: %w", f.Gufi, err)
	}
	return nil
}

// DeleteFlight removes one flight.
func (d *FlightDB) DeleteFlight(gufi string) error {
	if _, err := d.db.Exec(`DELETE FROM flights WHERE gufi = ?`, gufi); err != nil {
		return fmt.Errorf("delete flight %s: %w", gufi, err)
	}
	return nil
}
