// Package flightstate maintains authoritative per-flight state: it
// reconciles parsed domain events per GUFI, drives the handoff state
// machine, evicts stale flights and emits change envelopes for fanout.
package flightstate

import (
	"time"
)

// Status of a flight record.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusDropped   Status = "DROPPED"
	StatusCancelled Status = "CANCELLED"
)

// EventLogSize bounds the per-flight ring of state-change records.
const EventLogSize = 50

// LogEntry records one state change applied to a flight.
type LogEntry struct {
	Time   time.Time      `json:"time"`
	Kind   string         `json:"kind"`
	Fields map[string]any `json:"fields,omitempty"`
}

// FlightState is the reconciled view of one flight, keyed by GUFI.
// JSON field names double as the keys of update-envelope field diffs, so
// clients can apply updates as overwrites of the snapshot they hold.
type FlightState struct {
	// Identity.
	Gufi        string            `json:"gufi"`
	FdpsGufi    string            `json:"fdpsGufi,omitempty"`
	Callsign    string            `json:"callsign,omitempty"`
	ComputerID  string            `json:"computerId,omitempty"`
	ComputerIDs map[string]string `json:"computerIds,omitempty"`

	// Flight plan.
	AircraftType      string `json:"aircraftType,omitempty"`
	WakeCategory      string `json:"wakeCategory,omitempty"`
	EquipmentSuffix   string `json:"equipmentSuffix,omitempty"`
	FlightRules       string `json:"flightRules,omitempty"`
	Origin            string `json:"origin,omitempty"`
	Destination       string `json:"destination,omitempty"`
	EntryFix          string `json:"entryFix,omitempty"`
	ExitFix           string `json:"exitFix,omitempty"`
	Route             string `json:"route,omitempty"`
	RequestedAltitude string `json:"requestedAltitude,omitempty"`
	AssignedBeacon    string `json:"assignedBeacon,omitempty"`
	Runway            string `json:"runway,omitempty"`
	Gate              string `json:"gate,omitempty"`
	Scratchpad1       string `json:"scratchpad1,omitempty"`
	Scratchpad2       string `json:"scratchpad2,omitempty"`
	OwnerSector       string `json:"ownerSector,omitempty"`
	PendingSector     string `json:"pendingSector,omitempty"`
	LeaderDirection   *int   `json:"ldrDirection,omitempty"`

	// Position and kinematics.
	Latitude     *float64 `json:"lat,omitempty"`
	Longitude    *float64 `json:"lon,omitempty"`
	GroundSpeed  *int     `json:"groundSpeed,omitempty"`
	GroundTrack  *int     `json:"groundTrack,omitempty"`
	VerticalRate *int     `json:"verticalRate,omitempty"`
	Squawk       string   `json:"squawk,omitempty"`

	// Altitudes.
	ReportedAltitude *int   `json:"reportedAltitude,omitempty"`
	AssignedAltitude string `json:"assignedAltitude,omitempty"`
	InterimAltitude  string `json:"interimAltitude,omitempty"`

	// Ownership.
	ControllingFacility string `json:"controllingFacility,omitempty"`
	ControllingSector   string `json:"controllingSector,omitempty"`
	ReportingFacility   string `json:"reportingFacility,omitempty"`

	// Handoff.
	HandoffEvent        string `json:"handoffEvent,omitempty"`
	HandoffReceiving    string `json:"handoffReceiving,omitempty"`
	HandoffTransferring string `json:"handoffTransferring,omitempty"`
	HandoffAccepting    string `json:"handoffAccepting,omitempty"`

	// Datalink / communications.
	DataLinkCode    string `json:"dataLinkCode,omitempty"`
	CommunicationID string `json:"communicationId,omitempty"`

	// Departure times.
	GateOut   *time.Time `json:"gateOut,omitempty"`
	TaxiStart *time.Time `json:"taxiStart,omitempty"`
	Takeoff   *time.Time `json:"takeoff,omitempty"`

	Status    Status    `json:"status"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
	MsgCount  uint64    `json:"msgCount"`

	EventLog []LogEntry `json:"eventLog,omitempty"`

	// handoffCompletedAt drives the 60 s completed-handoff decay; it is
	// process-local and not serialized.
	handoffCompletedAt time.Time
}

// appendLog adds a state-change record, keeping the ring bounded and its
// timestamps strictly monotonic.
func (f *FlightState) appendLog(at time.Time, kind string, fields map[string]any) {
	if n := len(f.EventLog); n > 0 && !at.After(f.EventLog[n-1].Time) {
		at = f.EventLog[n-1].Time.Add(time.Nanosecond)
	}
	f.EventLog = append(f.EventLog, LogEntry{Time: at, Kind: kind, Fields: fields})
	if len(f.EventLog) > EventLogSize {
		f.EventLog = f.EventLog[len(f.EventLog)-EventLogSize:]
	}
}

// Clone returns a deep copy safe to hand to readers and encoders.
func (f *FlightState) Clone() *FlightState {
	c := *f
	if f.ComputerIDs != nil {
		c.ComputerIDs = make(map[string]string, len(f.ComputerIDs))
		for k, v := range f.ComputerIDs {
			c.ComputerIDs[k] = v
		}
	}
	c.LeaderDirection = cloneInt(f.LeaderDirection)
	c.Latitude = cloneFloat(f.Latitude)
	c.Longitude = cloneFloat(f.Longitude)
	c.GroundSpeed = cloneInt(f.GroundSpeed)
	c.GroundTrack = cloneInt(f.GroundTrack)
	c.VerticalRate = cloneInt(f.VerticalRate)
	c.ReportedAltitude = cloneInt(f.ReportedAltitude)
	c.GateOut = cloneTime(f.GateOut)
	c.TaxiStart = cloneTime(f.TaxiStart)
	c.Takeoff = cloneTime(f.Takeoff)
	if f.EventLog != nil {
		c.EventLog = make([]LogEntry, len(f.EventLog))
		copy(c.EventLog, f.EventLog)
	}
	return &c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
