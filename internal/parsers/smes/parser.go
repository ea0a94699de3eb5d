// Package smes parses Surface Movement Event Service messages: ASDE-X
// surface target reports.
package smes

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

// Parser parses SurfaceMovementEvents documents.
type Parser struct{}

func (p *Parser) Name() string                 { return "smes" }
func (p *Parser) Services() []swim.ServiceType { return []swim.ServiceType{swim.ServiceSMES} }

func (p *Parser) CanParse(service swim.ServiceType, root string) bool {
	return root == "SurfaceMovementEvents"
}

type document struct {
	Airport string   `xml:"airport,attr"`
	Reports []report `xml:"positionReport"`
}

type report struct {
	Full       string `xml:"full,attr"`
	AsdexID    string `xml:"asdexId"`
	TargetType string `xml:"targetType"`
	Lat        string `xml:"lat"`
	Lon        string `xml:"lon"`
	Altitude   string `xml:"altitude"`
	Speed      string `xml:"speed"`
	Heading    string `xml:"heading"`
	FlightRef  string `xml:"flightRef"`
	Time       string `xml:"time"`
}

func (p *Parser) Parse(msg *swim.RawMessage) ([]events.Event, error) {
	var doc document
	if err := xml.Unmarshal(msg.Payload, &doc); err != nil {
		return nil, fmt.Errorf("smes: %w", err)
	}

	var out []events.Event
	for _, r := range doc.Reports {
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(r.Lat), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(r.Lon), 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		ev := events.SurfaceMovement{
			Meta: events.Meta{
				Time:   timestamp(r.Time, msg.Received),
				Source: swim.ServiceSMES,
			},
			Airport:    strings.TrimSpace(doc.Airport),
			AsdexID:    strings.TrimSpace(r.AsdexID),
			TargetType: targetType(r.TargetType),
			Latitude:   lat,
			Longitude:  lon,
			FlightRef:  strings.TrimSpace(r.FlightRef),
			Full:       r.Full == "true" || r.Full == "1",
		}
		if n, err := strconv.Atoi(strings.TrimSpace(r.Altitude)); err == nil {
			ev.AltitudeFeet = &n
		}
		if n, err := strconv.Atoi(strings.TrimSpace(r.Speed)); err == nil {
			ev.GroundSpeedKnots = &n
		}
		if n, err := strconv.Atoi(strings.TrimSpace(r.Heading)); err == nil {
			ev.HeadingDegrees = &n
		}
		out = append(out, ev)
	}
	return out, nil
}

func targetType(s string) events.SurfaceTargetType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aircraft":
		return events.SurfaceAircraft
	case "vehicle":
		return events.SurfaceVehicle
	default:
		return events.SurfaceUnknown
	}
}

func timestamp(s string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
		return t.UTC()
	}
	return fallback
}
