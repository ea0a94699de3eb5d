// Package tdes parses Tower Departure Event Service messages: gate-out,
// taxi-start and takeoff times for departing flights.
package tdes

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"swim_feed/internal/events"
	"swim_feed/internal/registry"
	"swim_feed/internal/swim"
)

func init() {
	registry.Register(&Parser{})
}

// Parser parses DepartureEvents documents.
type Parser struct{}

func (p *Parser) Name() string                 { return "tdes" }
func (p *Parser) Services() []swim.ServiceType { return []swim.ServiceType{swim.ServiceTDES} }

func (p *Parser) CanParse(service swim.ServiceType, root string) bool {
	return root == "DepartureEvents"
}

type document struct {
	Airport    string      `xml:"airport,attr"`
	Departures []departure `xml:"departure"`
}

type departure struct {
	Acid        string `xml:"acid"`
	Airport     string `xml:"airport"`
	Runway      string `xml:"runway"`
	Gate        string `xml:"gate"`
	OutTime     string `xml:"outTime"`
	TaxiTime    string `xml:"taxiTime"`
	TakeoffTime string `xml:"takeoffTime"`
	EventTime   string `xml:"eventTime"`
}

func (p *Parser) Parse(msg *swim.RawMessage) ([]events.Event, error) {
	var doc document
	if err := xml.Unmarshal(msg.Payload, &doc); err != nil {
		return nil, fmt.Errorf("tdes: %w", err)
	}

	var out []events.Event
	for _, d := range doc.Departures {
		callsign := strings.TrimSpace(d.Acid)
		if callsign == "" {
			continue
		}
		airport := strings.TrimSpace(d.Airport)
		if airport == "" {
			airport = strings.TrimSpace(doc.Airport)
		}
		ev := events.Departure{
			Meta: events.Meta{
				Time:   eventTime(d.EventTime, msg.Received),
				Source: swim.ServiceTDES,
			},
			Callsign:  callsign,
			Airport:   airport,
			Runway:    strings.TrimSpace(d.Runway),
			Gate:      strings.TrimSpace(d.Gate),
			GateOut:   parseTime(d.OutTime),
			TaxiStart: parseTime(d.TaxiTime),
			Takeoff:   parseTime(d.TakeoffTime),
		}
		out = append(out, ev)
	}
	return out, nil
}

func parseTime(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func eventTime(s string, fallback time.Time) time.Time {
	if t := parseTime(s); t != nil {
		return *t
	}
	return fallback
}
