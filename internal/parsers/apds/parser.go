// Package apds accepts Airport Data Service messages. The service is
// claimed so it does not count as unparsed, but no events are produced
// by this core.
package apds

import (
	"swim_feed/internal/events"
	"swim_feed/internal/registry"
	"swim_feed/internal/swim"
)

func init() {
	registry.Register(&Parser{})
}

type Parser struct{}

func (p *Parser) Name() string                 { return "apds" }
func (p *Parser) Services() []swim.ServiceType { return []swim.ServiceType{swim.ServiceAPDS} }

func (p *Parser) CanParse(service swim.ServiceType, root string) bool { return true }

func (p *Parser) Parse(msg *swim.RawMessage) ([]events.Event, error) {
	return nil, nil
}
