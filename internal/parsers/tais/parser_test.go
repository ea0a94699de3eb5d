package tais

import (
	"testing"
	"time"

	"swim_feed/internal/events"
	"swim_feed/internal/swim"
)

func rawMessage(payload string) *swim.RawMessage {
	return &swim.RawMessage{
		Received: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Topic:    "SWIM.TAIS.BOS",
		Service:  swim.ServiceTAIS,
		Payload:  []byte(payload),
	}
}

func TestParseTrack(t *testing.T) {
	payload := `<TATrackAndFlightPlan src="BOS">
  <record>
    <track>
      <trackNum>42</trackNum>
      <lat>42.3643</lat>
      <lon>-71.0052</lon>
      <vx>300</vx>
      <vy>400</vy>
      <reportedAltitude>12000</reportedAltitude>
      <reportedBeaconCode>1234</reportedBeaconCode>
      <acAddress>ABC123</acAddress>
    </track>
  </record>
</TATrackAndFlightPlan>`

	evs, err := (&Parser{}).Parse(rawMessage(payload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1", len(evs))
	}

	tp, ok := evs[0].(events.TrackPosition)
	if !ok {
		t.Fatalf("event type %T, want TrackPosition", evs[0])
	}
	if tp.Facility != "BOS" {
		t.Errorf("facility = %q, want BOS", tp.Facility)
	}
	if tp.TrackNum != 42 {
		t.Errorf("trackNum = %d, want 42", tp.TrackNum)
	}
	if tp.Latitude != 42.3643 || tp.Longitude != -71.0052 {
		t.Errorf("position = (%v,%v)", tp.Latitude, tp.Longitude)
	}
	if tp.AltitudeFeet == nil || *tp.AltitudeFeet != 12000 {
		t.Errorf("altitude = %v, want 12000", tp.AltitudeFeet)
	}
	if tp.GroundSpeedKnots == nil || *tp.GroundSpeedKnots != 500 {
		t.Errorf("ground speed = %v, want 500", tp.GroundSpeedKnots)
	}
	if tp.GroundTrackDegrees == nil || *tp.GroundTrackDegrees != 37 {
		t.Errorf("ground track = %v, want 37", tp.GroundTrackDegrees)
	}
	if tp.Squawk != "1234" {
		t.Errorf("squawk = %q, want 1234", tp.Squawk)
	}
	if tp.ModeSCode == nil || *tp.ModeSCode != 0xABC123 {
		t.Errorf("mode-s = %v, want 0xABC123", tp.ModeSCode)
	}
}

func TestStationaryTrackHasNoGroundTrack(t *testing.T) {
	payload := `<TATrackAndFlightPlan src="BOS">
  <record><track><lat>42.0</lat><lon>-71.0</lon><vx>0</vx><vy>0</vy></track></record>
</TATrackAndFlightPlan>`

	evs, err := (&Parser{}).Parse(rawMessage(payload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tp := evs[0].(events.TrackPosition)
	if tp.GroundSpeedKnots == nil || *tp.GroundSpeedKnots != 0 {
		t.Errorf("ground speed = %v, want 0", tp.GroundSpeedKnots)
	}
	if tp.GroundTrackDegrees != nil {
		t.Errorf("ground track = %v, want absent", *tp.GroundTrackDegrees)
	}
}

func TestFillerModeSAbsent(t *testing.T) {
	payload := `<TATrackAndFlightPlan src="A90">
  <record><track><lat>42.0</lat><lon>-71.0</lon><acAddress>000000</acAddress></track></record>
</TATrackAndFlightPlan>`

	evs, err := (&Parser{}).Parse(rawMessage(payload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tp := evs[0].(events.TrackPosition)
	if tp.ModeSCode != nil {
		t.Errorf("mode-s = %v, want absent", *tp.ModeSCode)
	}
}

func TestSkipsNonNumericPosition(t *testing.T) {
	payload := `<TATrackAndFlightPlan src="A90">
  <record><track><lat>unavailable</lat><lon>-71.0</lon></track></record>
</TATrackAndFlightPlan>`

	evs, err := (&Parser{}).Parse(rawMessage(payload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(evs) != 0 {
		t.Fatalf("got %d events, want 0", len(evs))
	}
}

func TestFlightPlan(t *testing.T) {
	payload := `<TATrackAndFlightPlan src="BOS">
  <record>
    <track><trackNum>7</trackNum><lat>42.0</lat><lon>-71.0</lon></track>
    <flightPlan>
      <acid>JBU123</acid>
      <acType>A320</acType>
      <category>M</category>
      <suffix>unavailable</suffix>
      <flightRules>IFR</flightRules>
      <origin>KBOS</origin>
      <destination>KJFK</destination>
      <assignedBeaconCode>2345</assignedBeaconCode>
      <runway>04R</runway>
      <scratchPad1></scratchPad1>
      <lld>SE</lld>
    </flightPlan>
  </record>
</TATrackAndFlightPlan>`

	evs, err := (&Parser{}).Parse(rawMessage(payload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}

	fp, ok := evs[1].(events.FlightPlanData)
	if !ok {
		t.Fatalf("event type %T, want FlightPlanData", evs[1])
	}
	if fp.Callsign != "JBU123" {
		t.Errorf("callsign = %q", fp.Callsign)
	}
	if fp.EquipmentSuffix != "" {
		t.Errorf("equipment suffix = %q, want absent", fp.EquipmentSuffix)
	}
	if fp.Scratchpad1 != "" {
		t.Errorf("scratchpad1 = %q, want absent", fp.Scratchpad1)
	}
	if fp.LeaderDirection == nil || *fp.LeaderDirection != 9 {
		t.Errorf("leader direction = %v, want 9", fp.LeaderDirection)
	}
	if fp.ReportingFacility != "BOS" {
		t.Errorf("reporting facility = %q, want BOS", fp.ReportingFacility)
	}
}

func TestLeaderDirectionMap(t *testing.T) {
	testCases := []struct {
		lld  string
		want int // 0 means absent
	}{
		{"NW", 1}, {"N", 2}, {"NE", 3},
		{"W", 4}, {"E", 6},
		{"SW", 7}, {"S", 8}, {"SE", 9},
		{"X", 0}, {"", 0},
	}

	for _, tc := range testCases {
		fp := planEvent("BOS", &flightPlan{Lld: tc.lld}, time.Now())
		if tc.want == 0 {
			if fp.LeaderDirection != nil {
				t.Errorf("lld %q: got %d, want absent", tc.lld, *fp.LeaderDirection)
			}
			continue
		}
		if fp.LeaderDirection == nil || *fp.LeaderDirection != tc.want {
			t.Errorf("lld %q: got %v, want %d", tc.lld, fp.LeaderDirection, tc.want)
		}
	}
}
