package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"swim_feed/internal/bus"
	"swim_feed/internal/events"
	"swim_feed/internal/flightstate"
	"swim_feed/internal/trackid"
)

// Relay forwards surveillance events that carry no GUFI to legacy
// clients. Track positions are keyed through the identity mapper so the
// same physical track keeps a stable id; surface targets use their
// airport-scoped ASDE-X id directly.
type Relay struct {
	hub    *Hub
	mapper *trackid.Mapper
	log    *slog.Logger
}

func NewRelay(hub *Hub, mapper *trackid.Mapper, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{hub: hub, mapper: mapper, log: log}
}

// Run consumes surveillance events from the bus until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, b *bus.Bus) {
	sub := b.Subscribe("LegacyRelay", bus.DefaultCapacity)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case msg := <-sub.C():
			switch ev := msg.(type) {
			case events.TrackPosition:
				r.relayTrack(ev)
			case events.SurfaceMovement:
				r.relaySurface(ev)
			}
		}
	}
}

func (r *Relay) relayTrack(ev events.TrackPosition) {
	var modeS uint32
	if ev.ModeSCode != nil {
		modeS = *ev.ModeSCode
	}
	id := r.mapper.Lookup(trackid.Key{
		ModeSCode: modeS,
		TrackNum:  ev.TrackNum,
		Facility:  ev.Facility,
	})

	fields := map[string]any{
		"facility": ev.Facility,
		"trackNum": ev.TrackNum,
		"lat":      ev.Latitude,
		"lon":      ev.Longitude,
		"onGround": ev.OnGround,
	}
	if ev.AltitudeFeet != nil {
		fields["altitude"] = *ev.AltitudeFeet
		fields["altitudeType"] = ev.AltitudeType
	}
	if ev.GroundSpeedKnots != nil {
		fields["groundSpeed"] = *ev.GroundSpeedKnots
	}
	if ev.GroundTrackDegrees != nil {
		fields["groundTrack"] = *ev.GroundTrackDegrees
	}
	if ev.VerticalRateFPM != nil {
		fields["verticalRate"] = *ev.VerticalRateFPM
	}
	if ev.Squawk != "" {
		fields["squawk"] = ev.Squawk
	}
	if ev.ModeSCode != nil {
		fields["modeS"] = fmt.Sprintf("%06X", *ev.ModeSCode)
	}
	if ev.Ident {
		fields["ident"] = true
	}

	r.hub.Broadcast(flightstate.Envelope{
		Type:     "update",
		Time:     eventTime(ev.Time),
		TrackID:  id,
		Fields:   fields,
		Facility: ev.Facility,
	})
}

func (r *Relay) relaySurface(ev events.SurfaceMovement) {
	fields := map[string]any{
		"airport":    ev.Airport,
		"targetType": ev.TargetType,
		"lat":        ev.Latitude,
		"lon":        ev.Longitude,
		"full":       ev.Full,
	}
	if ev.AltitudeFeet != nil {
		fields["altitude"] = *ev.AltitudeFeet
	}
	if ev.GroundSpeedKnots != nil {
		fields["groundSpeed"] = *ev.GroundSpeedKnots
	}
	if ev.HeadingDegrees != nil {
		fields["heading"] = *ev.HeadingDegrees
	}
	if ev.FlightRef != "" {
		fields["flightRef"] = ev.FlightRef
	}

	r.hub.Broadcast(flightstate.Envelope{
		Type:     "update",
		Time:     eventTime(ev.Time),
		TrackID:  ev.Airport + ":" + ev.AsdexID,
		Fields:   fields,
		Facility: ev.Airport,
	})
}

func eventTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
