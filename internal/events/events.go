// Package events defines the domain events produced by the SWIM parsers
// and consumed by the flight-state store and fanout layer.
package events

import (
	"time"

	"swim_feed/internal/swim"
)

// Kind tags the event variant.
type Kind string

const (
	KindTrackPosition   Kind = "track_position"
	KindFlightPlanData  Kind = "flight_plan_data"
	KindDeparture       Kind = "departure"
	KindSurfaceMovement Kind = "surface_movement"
)

// Event is the tagged variant carried on the bus after parsing. Consumers
// switch on the concrete type; no reflection beyond the tag is needed.
type Event interface {
	EventKind() Kind
	EventTime() time.Time
	EventSource() swim.ServiceType
}

// Meta carries the timestamp and source tag common to every event.
type Meta struct {
	Time   time.Time
	Source swim.ServiceType
}

func (m Meta) EventTime() time.Time          { return m.Time }
func (m Meta) EventSource() swim.ServiceType { return m.Source }

// AltitudeType distinguishes how a reported altitude was measured.
type AltitudeType string

const (
	AltitudePressure AltitudeType = "pressure"
	AltitudeTrue     AltitudeType = "true"
	AltitudeUnknown  AltitudeType = "unknown"
)

// TrackPosition is one surveillance position report.
//
// Pointer fields are absent when nil: a track with vx==vy==0 has ground
// speed 0 but no ground track, and acAddress "000000" yields no Mode-S code.
type TrackPosition struct {
	Meta

	Facility string
	TrackNum int

	Latitude  float64
	Longitude float64

	AltitudeFeet *int
	AltitudeType AltitudeType

	GroundSpeedKnots   *int
	GroundTrackDegrees *int
	VerticalRateFPM    *int

	Squawk    string
	ModeSCode *uint32
	OnGround  bool
	Ident     bool
}

func (TrackPosition) EventKind() Kind { return KindTrackPosition }

// FlightPlanData carries flight-plan and state-merge fields. Empty string
// fields mean "no update"; the store merges last-non-empty-wins.
type FlightPlanData struct {
	Meta

	// Identity.
	Gufi     string
	FdpsGufi string
	Callsign string

	// Per-facility computer IDs (union-merged into flight state).
	ComputerIDs map[string]string

	// SFDPS FIXM message kind (TH, HZ, OH, FH, HP, HU, AH, HX, CL, LH, NP).
	// Empty for flight plans embedded in TAIS records.
	MessageKind string

	// Flight plan.
	AircraftType      string
	WakeCategory      string
	EquipmentSuffix   string
	FlightRules       string
	Origin            string
	Destination       string
	EntryFix          string
	ExitFix           string
	Route             string
	RequestedAltitude string
	AssignedBeacon    string
	Runway            string
	Scratchpad1       string
	Scratchpad2       string
	OwnerSector       string
	PendingSector     string
	LeaderDirection   *int

	// Ownership and handoff (state-merge fields consumed by the store).
	ControllingFacility string
	ControllingSector   string
	ReportingFacility   string
	HandoffReceiving    string
	HandoffTransferring string
	HandoffAccepting    string

	// Altitudes.
	AssignedAltitude string
	InterimAltitude  string
	ReportedAltitude *int

	// Position carried by en-route track messages (TH/HZ).
	Latitude        *float64
	Longitude       *float64
	GroundSpeed     *int
	GroundTrack     *int
	VerticalRate    *int
	Squawk          string
	DataLinkCode    string
	CommunicationID string
}

func (FlightPlanData) EventKind() Kind { return KindFlightPlanData }

// Departure is a TDES gate/taxi/takeoff report.
type Departure struct {
	Meta

	Callsign string
	Airport  string
	Runway   string
	Gate     string

	GateOut   *time.Time
	TaxiStart *time.Time
	Takeoff   *time.Time
}

func (Departure) EventKind() Kind { return KindDeparture }

// SurfaceTargetType classifies an ASDE-X surface target.
type SurfaceTargetType string

const (
	SurfaceAircraft SurfaceTargetType = "aircraft"
	SurfaceVehicle  SurfaceTargetType = "vehicle"
	SurfaceUnknown  SurfaceTargetType = "unknown"
)

// SurfaceMovement is one ASDE-X surface target report.
type SurfaceMovement struct {
	Meta

	Airport    string
	AsdexID    string
	TargetType SurfaceTargetType

	Latitude  float64
	Longitude float64

	AltitudeFeet     *int
	GroundSpeedKnots *int
	HeadingDegrees   *int

	// Optional cross-reference to a flight identifier.
	FlightRef string

	// Full distinguishes full reports from delta reports.
	Full bool
}

func (SurfaceMovement) EventKind() Kind { return KindSurfaceMovement }
