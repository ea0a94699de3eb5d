package sfdps

import (
	"testing"
	"time"

	"swim_feed/internal/events"
	"swim_feed/internal/swim"
)

func rawMessage(payload string) *swim.RawMessage {
	return &swim.RawMessage{
		Received: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Topic:    "SFDPS.FLIGHT",
		Service:  swim.ServiceSFDPS,
		Payload:  []byte(payload),
	}
}

func TestParseHandoffProposal(t *testing.T) {
	payload := `<MessageCollection>
  <message eventType="HP" timestamp="2026-03-01T12:00:05Z">
    <flight centre="ZBW">
      <gufi>G1</gufi>
      <flightIdentification>
        <aircraftIdentification>DAL123</aircraftIdentification>
        <computerId facility="ZBW">123</computerId>
        <computerId facility="ZNY">456</computerId>
      </flightIdentification>
      <aircraftDescription type="B738" wakeCategory="M" equipmentQualifier="L"/>
      <departure>KJFK</departure>
      <arrival>KBOS</arrival>
      <controllingUnit unit="ZBW" sector="08"/>
      <handoff>
        <receivingUnit unit="ZNY" sector="10"/>
        <transferringUnit unit="ZBW" sector="08"/>
      </handoff>
    </flight>
  </message>
</MessageCollection>`

	evs, err := (&Parser{}).Parse(rawMessage(payload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1", len(evs))
	}

	fp, ok := evs[0].(events.FlightPlanData)
	if !ok {
		t.Fatalf("event type %T, want FlightPlanData", evs[0])
	}
	if fp.MessageKind != "HP" {
		t.Errorf("kind = %q, want HP", fp.MessageKind)
	}
	if fp.Gufi != "G1" {
		t.Errorf("gufi = %q, want G1", fp.Gufi)
	}
	if fp.Callsign != "DAL123" {
		t.Errorf("callsign = %q", fp.Callsign)
	}
	if fp.ComputerIDs["ZBW"] != "123" || fp.ComputerIDs["ZNY"] != "456" {
		t.Errorf("computer ids = %v", fp.ComputerIDs)
	}
	if fp.ControllingFacility != "ZBW" || fp.ControllingSector != "08" {
		t.Errorf("controlling = %q/%q", fp.ControllingFacility, fp.ControllingSector)
	}
	if fp.HandoffReceiving != "ZNY/10" {
		t.Errorf("receiving = %q, want ZNY/10", fp.HandoffReceiving)
	}
	if fp.HandoffTransferring != "ZBW/08" {
		t.Errorf("transferring = %q, want ZBW/08", fp.HandoffTransferring)
	}
	if !fp.EventTime().Equal(time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)) {
		t.Errorf("time = %v", fp.EventTime())
	}
}

func TestParseTrackMessage(t *testing.T) {
	payload := `<MessageCollection>
  <message eventType="TH">
    <flight centre="ZNY">
      <gufi>G2</gufi>
      <enRoute>
        <position lat="40.64" lon="-73.78">
          <altitude>35000</altitude>
          <groundSpeed>455</groundSpeed>
          <groundTrack>52</groundTrack>
          <verticalRate>-500</verticalRate>
          <squawk>2345</squawk>
        </position>
      </enRoute>
    </flight>
  </message>
</MessageCollection>`

	evs, err := (&Parser{}).Parse(rawMessage(payload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fp := evs[0].(events.FlightPlanData)
	if fp.Latitude == nil || *fp.Latitude != 40.64 {
		t.Errorf("lat = %v", fp.Latitude)
	}
	if fp.ReportedAltitude == nil || *fp.ReportedAltitude != 35000 {
		t.Errorf("altitude = %v", fp.ReportedAltitude)
	}
	if fp.GroundSpeed == nil || *fp.GroundSpeed != 455 {
		t.Errorf("ground speed = %v", fp.GroundSpeed)
	}
	if fp.VerticalRate == nil || *fp.VerticalRate != -500 {
		t.Errorf("vertical rate = %v", fp.VerticalRate)
	}
	if fp.Squawk != "2345" {
		t.Errorf("squawk = %q", fp.Squawk)
	}
}

func TestUnknownKindDropped(t *testing.T) {
	payload := `<MessageCollection>
  <message eventType="ZZ"><flight><gufi>G3</gufi></flight></message>
  <message eventType="CL"><flight><gufi>G3</gufi></flight></message>
</MessageCollection>`

	evs, err := (&Parser{}).Parse(rawMessage(payload))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1", len(evs))
	}
	if kind := evs[0].(events.FlightPlanData).MessageKind; kind != "CL" {
		t.Errorf("kind = %q, want CL", kind)
	}
}
