// Package swim provides the raw SWIM message model and service-type
// inference for payloads delivered by the FAA data bus.
package swim

import (
	"strings"
	"time"
)

// ServiceType identifies which SWIM publication a payload belongs to.
type ServiceType string

const (
	ServiceTAIS    ServiceType = "TAIS"
	ServiceTDES    ServiceType = "TDES"
	ServiceSMES    ServiceType = "SMES"
	ServiceAPDS    ServiceType = "APDS"
	ServiceISMC    ServiceType = "ISMC"
	ServiceSFDPS   ServiceType = "SFDPS"
	ServiceUnknown ServiceType = "UNKNOWN"
)

// topicServices is checked in order; the first substring match wins.
var topicServices = []ServiceType{
	ServiceTAIS,
	ServiceTDES,
	ServiceSMES,
	ServiceAPDS,
	ServiceISMC,
}

// InferServiceType maps a broker topic name to a service type by
// case-insensitive substring match.
func InferServiceType(topic string) ServiceType {
	upper := strings.ToUpper(topic)
	for _, svc := range topicServices {
		if strings.Contains(upper, string(svc)) {
			return svc
		}
	}
	return ServiceUnknown
}

// RawMessage is one payload as delivered by the broker. Immutable once
// published to the bus.
type RawMessage struct {
	Received time.Time
	Topic    string
	Service  ServiceType
	Payload  []byte
}
