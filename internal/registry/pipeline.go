package registry

import (
	"bytes"
	"context"
	"encoding/xml"
	"log/slog"
	"sync"

	"swim_feed/internal/bus"
	"swim_feed/internal/swim"
)

// ServiceStats counts pipeline outcomes for one service type.
type ServiceStats struct {
	Messages  uint64 `json:"messages"`
	Events    uint64 `json:"events"`
	Unclaimed uint64 `json:"unclaimed"`
	Malformed uint64 `json:"malformed"`
	Errors    uint64 `json:"errors"`
}

// Pipeline subscribes to the bus, parses raw XML payloads and republishes
// the resulting domain events.
type Pipeline struct {
	bus *bus.Bus
	reg *Registry
	log *slog.Logger

	mu    sync.Mutex
	stats map[swim.ServiceType]*ServiceStats
}

// NewPipeline creates the parser dispatch stage.
func NewPipeline(b *bus.Bus, reg *Registry, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		bus:   b,
		reg:   reg,
		log:   log.With("component", "parser"),
		stats: make(map[swim.ServiceType]*ServiceStats),
	}
}

// Run consumes raw messages until ctx is cancelled or the bus closes.
// A panic while handling one message is logged and the loop continues;
// no single bad payload halts ingestion.
func (p *Pipeline) Run(ctx context.Context) {
	sub := p.bus.Subscribe("ParserPipeline", 0)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case msg := <-sub.C():
			raw, ok := msg.(*swim.RawMessage)
			if !ok {
				continue
			}
			p.handle(raw)
		}
	}
}

func (p *Pipeline) handle(raw *swim.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("parser panic recovered",
				"service", raw.Service, "topic", raw.Topic, "panic", r)
			p.record(raw.Service, func(st *ServiceStats) { st.Errors++ })
		}
	}()

	root, err := xmlRoot(raw.Payload)
	if err != nil {
		p.log.Warn("malformed XML payload dropped",
			"service", raw.Service, "topic", raw.Topic, "error", err)
		p.record(raw.Service, func(st *ServiceStats) { st.Malformed++ })
		return
	}

	evs, claimed, errs := p.reg.Dispatch(raw, root)
	for _, perr := range errs {
		p.log.Warn("parse error", "service", raw.Service, "error", perr)
	}
	if !claimed {
		p.log.Debug("no parser claimed message", "service", raw.Service, "root", root)
	}

	p.record(raw.Service, func(st *ServiceStats) {
		st.Events += uint64(len(evs))
		st.Errors += uint64(len(errs))
		if !claimed {
			st.Unclaimed++
		}
	})

	for _, ev := range evs {
		p.bus.Publish(ev)
	}
}

// record counts one processed message and applies fn to the service entry.
func (p *Pipeline) record(svc swim.ServiceType, fn func(*ServiceStats)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.stats[svc]
	if !ok {
		st = &ServiceStats{}
		p.stats[svc] = st
	}
	st.Messages++
	fn(st)
}

// Stats returns a copy of the per-service counters.
func (p *Pipeline) Stats() map[swim.ServiceType]ServiceStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[swim.ServiceType]ServiceStats, len(p.stats))
	for svc, st := range p.stats {
		out[svc] = *st
	}
	return out
}

// xmlRoot returns the local name of the document's root element.
func xmlRoot(payload []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(payload))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}
