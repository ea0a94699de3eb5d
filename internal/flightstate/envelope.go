package flightstate

import "time"

// Envelope is the wire message sent to connected clients. One struct
// covers all four types; unused fields are omitted from the JSON.
type Envelope struct {
	Type string    `json:"type"` // snapshot, update, remove, stats
	Time time.Time `json:"time"`

	// snapshot
	Flights []*FlightState `json:"flights,omitempty"`

	// update / remove
	Gufi   string         `json:"gufi,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
	Reason string         `json:"reason,omitempty"`

	// Stable identifier for legacy track relays that have no GUFI.
	TrackID string `json:"trackId,omitempty"`

	// stats
	MsgTotal      uint64  `json:"msgTotal,omitempty"`
	MsgRate       float64 `json:"msgRate,omitempty"`
	ActiveFlights int     `json:"activeFlights,omitempty"`

	// Facility scopes delivery; it is routing metadata, not payload.
	Facility string `json:"-"`
}

// Removal reasons.
const (
	RemoveStale     = "stale"
	RemoveCancelled = "cancelled"
)

func snapshotEnvelope(now time.Time, flights []*FlightState, facility string) Envelope {
	return Envelope{Type: "snapshot", Time: now, Flights: flights, Facility: facility}
}

func updateEnvelope(now time.Time, gufi string, fields map[string]any, facility string) Envelope {
	return Envelope{Type: "update", Time: now, Gufi: gufi, Fields: fields, Facility: facility}
}

func removeEnvelope(now time.Time, gufi, reason, facility string) Envelope {
	return Envelope{Type: "remove", Time: now, Gufi: gufi, Reason: reason, Facility: facility}
}

func statsEnvelope(now time.Time, total uint64, rate float64, active int) Envelope {
	return Envelope{Type: "stats", Time: now, MsgTotal: total, MsgRate: rate, ActiveFlights: active}
}
