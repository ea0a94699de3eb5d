// Package ismc accepts Infrastructure System Monitoring and Control
// messages. The service is claimed so it does not count as unparsed, but
// no events are produced by this core.
package ismc

import (
	"swim_feed/internal/events"
	"swim_feed/internal/registry"
	"swim_feed/internal/swim"
)

func init() {
	registry.Register(&Parser{})
}

type Parser struct{}

func (p *Parser) Name() string                 { return "ismc" }
func (p *Parser) Services() []swim.ServiceType { return []swim.ServiceType{swim.ServiceISMC} }

func (p *Parser) CanParse(service swim.ServiceType, root string) bool { return true }

func (p *Parser) Parse(msg *swim.RawMessage) ([]events.Event, error) {
	return nil, nil
}
