package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"swim_feed/internal/bus"
	"swim_feed/internal/events"
	"swim_feed/internal/swim"
)

type fakeParser struct {
	name     string
	services []swim.ServiceType
	root     string
	evs      []events.Event
	err      error
	calls    int
}

func (f *fakeParser) Name() string                 { return f.name }
func (f *fakeParser) Services() []swim.ServiceType { return f.services }

func (f *fakeParser) CanParse(service swim.ServiceType, root string) bool {
	return f.root == "" || f.root == root
}

func (f *fakeParser) Parse(msg *swim.RawMessage) ([]events.Event, error) {
	f.calls++
	return f.evs, f.err
}

func trackEvent() events.Event {
	return events.TrackPosition{Meta: events.Meta{Time: time.Now(), Source: swim.ServiceTAIS}}
}

func TestDispatchByService(t *testing.T) {
	r := New()
	tais := &fakeParser{name: "tais", services: []swim.ServiceType{swim.ServiceTAIS}, evs: []events.Event{trackEvent()}}
	tdes := &fakeParser{name: "tdes", services: []swim.ServiceType{swim.ServiceTDES}}
	r.Register(tais)
	r.Register(tdes)

	msg := &swim.RawMessage{Service: swim.ServiceTAIS}
	evs, claimed, errs := r.Dispatch(msg, "TATrackAndFlightPlan")
	if !claimed {
		t.Error("message not claimed")
	}
	if len(evs) != 1 || len(errs) != 0 {
		t.Errorf("events = %d, errors = %d", len(evs), len(errs))
	}
	if tdes.calls != 0 {
		t.Error("tdes parser ran for a TAIS message")
	}
}

func TestDispatchUnclaimed(t *testing.T) {
	r := New()
	r.Register(&fakeParser{name: "tais", services: []swim.ServiceType{swim.ServiceTAIS}, root: "TATrackAndFlightPlan"})

	msg := &swim.RawMessage{Service: swim.ServiceTAIS}
	_, claimed, _ := r.Dispatch(msg, "SomethingElse")
	if claimed {
		t.Error("message claimed despite failing precondition")
	}
}

func TestDispatchCollectsErrors(t *testing.T) {
	r := New()
	r.Register(&fakeParser{name: "bad", services: []swim.ServiceType{swim.ServiceTAIS}, err: errors.New("boom")})
	r.Register(&fakeParser{name: "good", services: []swim.ServiceType{swim.ServiceTAIS}, evs: []events.Event{trackEvent()}})

	evs, claimed, errs := r.Dispatch(&swim.RawMessage{Service: swim.ServiceTAIS}, "x")
	if !claimed || len(evs) != 1 || len(errs) != 1 {
		t.Errorf("claimed=%v events=%d errors=%d", claimed, len(evs), len(errs))
	}
}

func TestPipelineRepublishesEvents(t *testing.T) {
	b := bus.New(nil)
	r := New()
	r.Register(&fakeParser{name: "tais", services: []swim.ServiceType{swim.ServiceTAIS}, evs: []events.Event{trackEvent()}})

	out := b.Subscribe("test-consumer", 16)
	p := NewPipeline(b, r, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	b.Publish(&swim.RawMessage{
		Service: swim.ServiceTAIS,
		Payload: []byte(`<TATrackAndFlightPlan/>`),
	})

	select {
	case msg := <-out.C():
		if _, ok := msg.(events.TrackPosition); ok {
			return
		}
		// The raw message also fans out to this subscriber; skip it.
		select {
		case msg = <-out.C():
			if _, ok := msg.(events.TrackPosition); !ok {
				t.Errorf("got %T, want TrackPosition", msg)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no domain event republished")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}
}

func TestPipelineDropsMalformedXML(t *testing.T) {
	b := bus.New(nil)
	r := New()
	p := NewPipeline(b, r, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	b.Publish(&swim.RawMessage{Service: swim.ServiceTAIS, Payload: []byte("not xml at all")})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := p.Stats()[swim.ServiceTAIS]
		if st.Malformed == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("malformed payload not counted")
}
