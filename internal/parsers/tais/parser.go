// Package tais parses Terminal Automation Information Service messages:
// terminal-area track reports with embedded flight plans.
package tais

import (
	"encoding/xml"
	"fmt"
	"math"
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

// leaderDirections maps the lld element to the legacy keypad direction code.
var leaderDirections = map[string]int{
	"NW": 1, "N": 2, "NE": 3,
	"W": 4, "E": 6,
	"SW": 7, "S": 8, "SE": 9,
}

// Parser parses TATrackAndFlightPlan documents.
type Parser struct{}

func (p *Parser) Name() string                 { return "tais" }
func (p *Parser) Services() []swim.ServiceType { return []swim.ServiceType{swim.ServiceTAIS} }

func (p *Parser) CanParse(service swim.ServiceType, root string) bool {
	return root == "TATrackAndFlightPlan"
}

// document mirrors the TAIS XML schema subset this parser consumes.
type document struct {
	Src     string   `xml:"src,attr"`
	Records []record `xml:"record"`
}

type record struct {
	Track      *track      `xml:"track"`
	FlightPlan *flightPlan `xml:"flightPlan"`
}

type track struct {
	TrackNum           string `xml:"trackNum"`
	MrtTime            string `xml:"mrtTime"`
	Lat                string `xml:"lat"`
	Lon                string `xml:"lon"`
	VX                 string `xml:"vx"`
	VY                 string `xml:"vy"`
	VVert              string `xml:"vVert"`
	ReportedAltitude   string `xml:"reportedAltitude"`
	ReportedBeaconCode string `xml:"reportedBeaconCode"`
	AcAddress          string `xml:"acAddress"`
	OnGround           string `xml:"onGround"`
	Ident              string `xml:"ident"`
}

type flightPlan struct {
	Acid               string `xml:"acid"`
	AcType             string `xml:"acType"`
	Category           string `xml:"category"`
	Suffix             string `xml:"suffix"`
	FlightRules        string `xml:"flightRules"`
	Origin             string `xml:"origin"`
	Destination        string `xml:"destination"`
	EntryFix           string `xml:"entryFix"`
	ExitFix            string `xml:"exitFix"`
	Route              string `xml:"route"`
	RequestedAltitude  string `xml:"requestedAltitude"`
	AssignedBeaconCode string `xml:"assignedBeaconCode"`
	Runway             string `xml:"runway"`
	ScratchPad1        string `xml:"scratchPad1"`
	ScratchPad2        string `xml:"scratchPad2"`
	OwnerSector        string `xml:"ownerSector"`
	PendingSector      string `xml:"pendingSector"`
	Lld                string `xml:"lld"`
}

func (p *Parser) Parse(msg *swim.RawMessage) ([]events.Event, error) {
	var doc document
	if err := xml.Unmarshal(msg.Payload, &doc); err != nil {
		return nil, fmt.Errorf("tais: %w", err)
	}

	var out []events.Event
	for _, rec := range doc.Records {
		if rec.Track == nil {
			continue
		}
		lat, latOK := parseFloat(rec.Track.Lat)
		lon, lonOK := parseFloat(rec.Track.Lon)
		if !latOK || !lonOK {
			continue
		}

		ev := trackEvent(doc.Src, rec.Track, lat, lon, msg.Received)
		out = append(out, ev)

		if rec.FlightPlan != nil {
			out = append(out, planEvent(doc.Src, rec.FlightPlan, ev.EventTime()))
		}
	}
	return out, nil
}

func trackEvent(facility string, t *track, lat, lon float64, received time.Time) events.TrackPosition {
	ev := events.TrackPosition{
		Meta: events.Meta{
			Time:   timestamp(t.MrtTime, received),
			Source: swim.ServiceTAIS,
		},
		Facility:  facility,
		Latitude:  lat,
		Longitude: lon,
		Squawk:    clean(t.ReportedBeaconCode),
		OnGround:  t.OnGround == "true" || t.OnGround == "1",
		Ident:     t.Ident == "true" || t.Ident == "1",
	}
	if n, ok := parseInt(t.TrackNum); ok {
		ev.TrackNum = n
	}

	ev.AltitudeType = events.AltitudeUnknown
	if alt, ok := parseInt(t.ReportedAltitude); ok {
		ev.AltitudeFeet = &alt
		ev.AltitudeType = events.AltitudePressure
	}

	vx, vxOK := parseFloat(t.VX)
	vy, vyOK := parseFloat(t.VY)
	if vxOK && vyOK {
		gs := int(math.Round(math.Hypot(vx, vy)))
		ev.GroundSpeedKnots = &gs
		// A stationary target has speed 0 but no defined track.
		if vx != 0 || vy != 0 {
			deg := math.Atan2(vx, vy) * 180 / math.Pi
			trk := int(math.Round(deg)) % 360
			if trk < 0 {
				trk += 360
			}
			ev.GroundTrackDegrees = &trk
		}
	}
	if vv, ok := parseInt(t.VVert); ok {
		ev.VerticalRateFPM = &vv
	}

	// acAddress 000000 is the TAIS filler for "no Mode-S".
	if addr := clean(t.AcAddress); addr != "" && addr != "000000" {
		if v, err := strconv.ParseUint(addr, 16, 32); err == nil {
			code := uint32(v)
			ev.ModeSCode = &code
		}
	}
	return ev
}

func planEvent(facility string, fp *flightPlan, at time.Time) events.FlightPlanData {
	ev := events.FlightPlanData{
		Meta: events.Meta{
			Time:   at,
			Source: swim.ServiceTAIS,
		},
		Callsign:          clean(fp.Acid),
		AircraftType:      clean(fp.AcType),
		WakeCategory:      clean(fp.Category),
		EquipmentSuffix:   clean(fp.Suffix),
		FlightRules:       clean(fp.FlightRules),
		Origin:            clean(fp.Origin),
		Destination:       clean(fp.Destination),
		EntryFix:          clean(fp.EntryFix),
		ExitFix:           clean(fp.ExitFix),
		Route:             clean(fp.Route),
		RequestedAltitude: clean(fp.RequestedAltitude),
		AssignedBeacon:    clean(fp.AssignedBeaconCode),
		Runway:            clean(fp.Runway),
		Scratchpad1:       clean(fp.ScratchPad1),
		Scratchpad2:       clean(fp.ScratchPad2),
		OwnerSector:       clean(fp.OwnerSector),
		PendingSector:     clean(fp.PendingSector),
		ReportingFacility: facility,
	}
	if code, ok := leaderDirections[clean(fp.Lld)]; ok {
		ev.LeaderDirection = &code
	}
	return ev
}

// clean normalizes the TAIS "no data" spellings to the empty string.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "unavailable") {
		return ""
	}
	return s
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

func parseInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil
}

func timestamp(s string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
		return t.UTC()
	}
	return fallback
}
