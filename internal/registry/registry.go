// Package registry provides the SWIM parser registry and the bus-driven
// dispatch pipeline that routes raw XML payloads to typed parsers.
package registry

import (
	"sort"
	"sync"

	"swim_feed/internal/events"
	"swim_feed/internal/swim"
)

// Parser is implemented by each SWIM message parser.
type Parser interface {
	// Name returns the parser's unique identifier.
	Name() string

	// Services returns which service types this parser handles.
	// Empty slice means "all services" (content-based parser).
	Services() []swim.ServiceType

	// CanParse is the precondition: given the service type and the root
	// element local name of the document, report whether Parse should
	// run. This should be a cheap string check, not a full parse.
	CanParse(service swim.ServiceType, root string) bool

	// Parse decodes the payload and returns zero or more domain events.
	Parse(msg *swim.RawMessage) ([]events.Event, error)
}

// Registry holds all registered parsers organised for efficient dispatch.
type Registry struct {
	mu sync.RWMutex

	// byService maps service types to parser slices, sorted by name for
	// deterministic dispatch order.
	byService map[swim.ServiceType][]Parser

	// global holds parsers that inspect all messages.
	global []Parser
}

// New creates a new Registry instance.
func New() *Registry {
	return &Registry{
		byService: make(map[swim.ServiceType][]Parser),
	}
}

// Global default registry.
var defaultRegistry = New()

// Default returns the global registry instance.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a parser to the default registry.
// Called during init() in each parser package.
func Register(p Parser) {
	defaultRegistry.Register(p)
}

// Register adds a parser to the registry.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	services := p.Services()
	if len(services) == 0 {
		r.global = append(r.global, p)
		sort.Slice(r.global, func(i, j int) bool {
			return r.global[i].Name() < r.global[j].Name()
		})
		return
	}
	for _, svc := range services {
		parsers := append(r.byService[svc], p)
		sort.Slice(parsers, func(i, j int) bool {
			return parsers[i].Name() < parsers[j].Name()
		})
		r.byService[svc] = parsers
	}
}

// candidates returns the parsers that may claim a message of the given
// service type.
func (r *Registry) candidates(service swim.ServiceType) []Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byService := r.byService[service]
	if len(r.global) == 0 {
		return byService
	}
	out := make([]Parser, 0, len(byService)+len(r.global))
	out = append(out, byService...)
	out = append(out, r.global...)
	return out
}

// Dispatch routes a message to every parser whose CanParse accepts it and
// returns the union of their events. claimed is false when no parser
// accepted the message.
func (r *Registry) Dispatch(msg *swim.RawMessage, root string) (evs []events.Event, claimed bool, errs []error) {
	for _, p := range r.candidates(msg.Service) {
		if !p.CanParse(msg.Service, root) {
			continue
		}
		claimed = true
		out, err := p.Parse(msg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		evs = append(evs, out...)
	}
	return evs, claimed, errs
}

// ParserCount returns the total number of unique registered parsers.
func (r *Registry) ParserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for _, p := range r.global {
		seen[p.Name()] = true
	}
	for _, parsers := range r.byService {
		for _, p := range parsers {
			seen[p.Name()] = true
		}
	}
	return len(seen)
}
