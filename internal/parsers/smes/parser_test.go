package smes

import (
	"testing"
	"time"

	"swim_feed/internal/events"
	"swim_feed/internal/swim"
)

func TestParseSurfaceReport(t *testing.T) {
	payload := `<SurfaceMovementEvents airport="KBOS">
  <positionReport full="true">
    <asdexId>A123</asdexId>
    <targetType>aircraft</targetType>
    <lat>42.3656</lat>
    <lon>-71.0096</lon>
    <altitude>20</altitude>
    <speed>15</speed>
    <heading>220</heading>
    <flightRef>JBU456</flightRef>
  </positionReport>
  <positionReport>
    <asdexId>V9</asdexId>
    <targetType>vehicle</targetType>
    <lat>42.36</lat>
    <lon>-71.01</lon>
  </positionReport>
</SurfaceMovementEvents>`

	msg := &swim.RawMessage{
		Received: time.Now().UTC(),
		Service:  swim.ServiceSMES,
		Payload:  []byte(payload),
	}
	evs, err := (&Parser{}).Parse(msg)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}

	sm := evs[0].(events.SurfaceMovement)
	if sm.Airport != "KBOS" || sm.AsdexID != "A123" {
		t.Errorf("airport/id = %q/%q", sm.Airport, sm.AsdexID)
	}
	if sm.TargetType != events.SurfaceAircraft {
		t.Errorf("target type = %q", sm.TargetType)
	}
	if !sm.Full {
		t.Error("full flag not set")
	}
	if sm.HeadingDegrees == nil || *sm.HeadingDegrees != 220 {
		t.Errorf("heading = %v", sm.HeadingDegrees)
	}
	if sm.FlightRef != "JBU456" {
		t.Errorf("flight ref = %q", sm.FlightRef)
	}

	veh := evs[1].(events.SurfaceMovement)
	if veh.TargetType != events.SurfaceVehicle {
		t.Errorf("target type = %q", veh.TargetType)
	}
	if veh.Full {
		t.Error("delta report marked full")
	}
	if veh.AltitudeFeet != nil {
		t.Errorf("altitude = %v, want absent", *veh.AltitudeFeet)
	}
}
