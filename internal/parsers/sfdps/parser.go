// Package sfdps parses en-route FIXM flight messages published by the
// SWIM Flight Data Publication Service.
package sfdps

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"swim_feed/internal/events"
	"swim_feed/internal/registry"
	"swim_feed/internal/swim"
)

func init() {
	registry.Register(&Parser{})
}

// messageKinds are the FIXM message types this core consumes. Anything
// else is dropped without an event.
var messageKinds = map[string]bool{
	"TH": true, "HZ": true, "OH": true, "FH": true,
	"HP": true, "HU": true, "AH": true, "HX": true,
	"CL": true, "LH": true, "NP": true,
}

// Parser parses FIXM MessageCollection documents.
type Parser struct{}

func (p *Parser) Name() string                 { return "sfdps" }
func (p *Parser) Services() []swim.ServiceType { return []swim.ServiceType{swim.ServiceSFDPS} }

func (p *Parser) CanParse(service swim.ServiceType, root string) bool {
	return root == "MessageCollection"
}

type collection struct {
	Messages []message `xml:"message"`
}

type message struct {
	EventType string  `xml:"eventType,attr"`
	Timestamp string  `xml:"timestamp,attr"`
	Flight    *flight `xml:"flight"`
}

type flight struct {
	Centre string `xml:"centre,attr"`

	Gufi     string `xml:"gufi"`
	FdpsGufi string `xml:"fdpsGufi"`

	Identification *identification `xml:"flightIdentification"`
	Aircraft       *aircraft       `xml:"aircraftDescription"`

	Departure         string `xml:"departure"`
	Arrival           string `xml:"arrival"`
	EntryFix          string `xml:"entryFix"`
	ExitFix           string `xml:"exitFix"`
	Route             string `xml:"route"`
	FlightRules       string `xml:"flightRules"`
	RequestedAltitude string `xml:"requestedAltitude"`
	AssignedAltitude  string `xml:"assignedAltitude"`
	InterimAltitude   string `xml:"interimAltitude"`
	BeaconCode        string `xml:"beaconCodeAssignment"`
	DataLinkCode      string `xml:"dataLinkCode"`
	CommunicationID   string `xml:"communicationId"`

	Controlling *unit    `xml:"controllingUnit"`
	Handoff     *handoff `xml:"handoff"`

	EnRoute *enRoute `xml:"enRoute"`
}

type identification struct {
	AircraftIdentification string       `xml:"aircraftIdentification"`
	ComputerIDs            []computerID `xml:"computerId"`
}

type computerID struct {
	Facility string `xml:"facility,attr"`
	Value    string `xml:",chardata"`
}

type aircraft struct {
	Type               string `xml:"type,attr"`
	WakeCategory       string `xml:"wakeCategory,attr"`
	EquipmentQualifier string `xml:"equipmentQualifier,attr"`
}

type unit struct {
	Unit   string `xml:"unit,attr"`
	Sector string `xml:"sector,attr"`
}

type handoff struct {
	Receiving    *unit `xml:"receivingUnit"`
	Transferring *unit `xml:"transferringUnit"`
	Accepting    *unit `xml:"acceptingUnit"`
}

type enRoute struct {
	Position *position `xml:"position"`
}

type position struct {
	Lat          string `xml:"lat,attr"`
	Lon          string `xml:"lon,attr"`
	Altitude     string `xml:"altitude"`
	GroundSpeed  string `xml:"groundSpeed"`
	GroundTrack  string `xml:"groundTrack"`
	VerticalRate string `xml:"verticalRate"`
	Squawk       string `xml:"squawk"`
}

func (p *Parser) Parse(msg *swim.RawMessage) ([]events.Event, error) {
	var coll collection
	if err := xml.Unmarshal(msg.Payload, &coll); err != nil {
		return nil, fmt.Errorf("sfdps: %w", err)
	}

	var out []events.Event
	for _, m := range coll.Messages {
		kind := strings.ToUpper(strings.TrimSpace(m.EventType))
		if m.Flight == nil || !messageKinds[kind] {
			continue
		}
		out = append(out, flightEvent(kind, m, msg.Received))
	}
	return out, nil
}

func flightEvent(kind string, m message, received time.Time) events.FlightPlanData {
	f := m.Flight
	ev := events.FlightPlanData{
		Meta: events.Meta{
			Time:   timestamp(m.Timestamp, received),
			Source: swim.ServiceSFDPS,
		},
		MessageKind:       kind,
		Gufi:              strings.TrimSpace(f.Gufi),
		FdpsGufi:          strings.TrimSpace(f.FdpsGufi),
		Origin:            strings.TrimSpace(f.Departure),
		Destination:       strings.TrimSpace(f.Arrival),
		EntryFix:          strings.TrimSpace(f.EntryFix),
		ExitFix:           strings.TrimSpace(f.ExitFix),
		Route:             strings.TrimSpace(f.Route),
		FlightRules:       strings.TrimSpace(f.FlightRules),
		RequestedAltitude: strings.TrimSpace(f.RequestedAltitude),
		AssignedAltitude:  strings.TrimSpace(f.AssignedAltitude),
		InterimAltitude:   strings.TrimSpace(f.InterimAltitude),
		AssignedBeacon:    strings.TrimSpace(f.BeaconCode),
		DataLinkCode:      strings.TrimSpace(f.DataLinkCode),
		CommunicationID:   strings.TrimSpace(f.CommunicationID),
		ReportingFacility: strings.TrimSpace(f.Centre),
	}

	if f.Identification != nil {
		ev.Callsign = strings.TrimSpace(f.Identification.AircraftIdentification)
		for _, cid := range f.Identification.ComputerIDs {
			fac := strings.TrimSpace(cid.Facility)
			val := strings.TrimSpace(cid.Value)
			if fac == "" || val == "" {
				continue
			}
			if ev.ComputerIDs == nil {
				ev.ComputerIDs = make(map[string]string)
			}
			ev.ComputerIDs[fac] = val
		}
	}
	if f.Aircraft != nil {
		ev.AircraftType = strings.TrimSpace(f.Aircraft.Type)
		ev.WakeCategory = strings.TrimSpace(f.Aircraft.WakeCategory)
		ev.EquipmentSuffix = strings.TrimSpace(f.Aircraft.EquipmentQualifier)
	}
	if f.Controlling != nil {
		ev.ControllingFacility = strings.TrimSpace(f.Controlling.Unit)
		ev.ControllingSector = strings.TrimSpace(f.Controlling.Sector)
	}
	if f.Handoff != nil {
		ev.HandoffReceiving = unitString(f.Handoff.Receiving)
		ev.HandoffTransferring = unitString(f.Handoff.Transferring)
		ev.HandoffAccepting = unitString(f.Handoff.Accepting)
	}
	if f.EnRoute != nil && f.EnRoute.Position != nil {
		mergePosition(&ev, f.EnRoute.Position)
	}
	return ev
}

func mergePosition(ev *events.FlightPlanData, pos *position) {
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(pos.Lat), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(pos.Lon), 64)
	if latErr == nil && lonErr == nil {
		ev.Latitude = &lat
		ev.Longitude = &lon
	}
	if n, err := strconv.Atoi(strings.TrimSpace(pos.Altitude)); err == nil {
		ev.ReportedAltitude = &n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(pos.GroundSpeed)); err == nil {
		ev.GroundSpeed = &n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(pos.GroundTrack)); err == nil {
		ev.GroundTrack = &n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(pos.VerticalRate)); err == nil {
		ev.VerticalRate = &n
	}
	ev.Squawk = strings.TrimSpace(pos.Squawk)
}

// unitString renders facility/sector as "ZNY/42", or just the facility
// when no sector is present.
func unitString(u *unit) string {
	if u == nil {
		return ""
	}
	fac := strings.TrimSpace(u.Unit)
	sector := strings.TrimSpace(u.Sector)
	if fac == "" {
		return ""
	}
	if sector == "" {
		return fac
	}
	return fac + "/" + sector
}

func timestamp(s string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
		return t.UTC()
	}
	return fallback
}
