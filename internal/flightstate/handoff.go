package flightstate

import (
	"time"

	"swim_feed/internal/events"
)

// Handoff decay: a completed handoff is displayed for a minute, then the
// completion marker is cleared as if the flight were idle.
const handoffDecay = 60 * time.Second

// positionOnlyKinds carry surveillance updates and never touch the
// handoff fields.
var positionOnlyKinds = map[string]bool{
	"TH": true,
	"HZ": true,
	"NP": true,
}

// applyHandoff runs the handoff state machine for one SFDPS message.
// It mutates f and records changed fields in ch. Returns true when the
// flight was cancelled by this message.
func (s *Store) applyHandoff(f *FlightState, ev events.FlightPlanData, now time.Time, ch map[string]any) (cancelled bool) {
	kind := ev.MessageKind
	if kind == "" || positionOnlyKinds[kind] {
		return false
	}

	// A completed handoff older than the decay window is plain IDLE.
	if !f.handoffCompletedAt.IsZero() && now.Sub(f.handoffCompletedAt) >= handoffDecay {
		s.clearCompletion(f, ch)
	}

	switch kind {
	case "HP", "HU", "AH":
		// Proposal (or an overwriting re-proposal): latest values win.
		setField(&f.HandoffEvent, kind, "handoffEvent", ch)
		if ev.HandoffReceiving != "" {
			setField(&f.HandoffReceiving, ev.HandoffReceiving, "handoffReceiving", ch)
		}
		if ev.HandoffTransferring != "" {
			setField(&f.HandoffTransferring, ev.HandoffTransferring, "handoffTransferring", ch)
		}
		if ev.HandoffAccepting != "" {
			setField(&f.HandoffAccepting, ev.HandoffAccepting, "handoffAccepting", ch)
		}
		f.handoffCompletedAt = time.Time{}

	case "HX":
		s.clearHandoff(f, ch)
		f.handoffCompletedAt = time.Time{}

	case "OH":
		// Ownership change. Completion is detected after the field merge
		// (see finishHandoff), once the new controlling unit is known.

	case "CL":
		if f.Status != StatusCancelled {
			f.Status = StatusCancelled
			ch["status"] = StatusCancelled
		}
		return true
	}
	return false
}

// finishHandoff enforces the completion rule after field merge: when the
// controlling unit now equals the proposed receiving unit, the proposal
// is resolved and all handoff fields clear in the same transition.
func (s *Store) finishHandoff(f *FlightState, now time.Time, ch map[string]any) {
	if f.HandoffReceiving == "" {
		return
	}
	if !receivingMatches(f.HandoffReceiving, f.ControllingFacility, f.ControllingSector) {
		return
	}
	s.clearHandoff(f, ch)
	setField(&f.HandoffEvent, "OH", "handoffEvent", ch)
	f.handoffCompletedAt = now
}

func (s *Store) clearHandoff(f *FlightState, ch map[string]any) {
	clearField(&f.HandoffEvent, "handoffEvent", ch)
	clearField(&f.HandoffReceiving, "handoffReceiving", ch)
	clearField(&f.HandoffTransferring, "handoffTransferring", ch)
	clearField(&f.HandoffAccepting, "handoffAccepting", ch)
}

func (s *Store) clearCompletion(f *FlightState, ch map[string]any) {
	clearField(&f.HandoffEvent, "handoffEvent", ch)
	f.handoffCompletedAt = time.Time{}
}

// receivingMatches compares a receiving unit string ("ZNY" or "ZNY/10")
// against the controlling facility and sector.
func receivingMatches(recv, facility, sector string) bool {
	if recv == "" || facility == "" {
		return false
	}
	if sector != "" && recv == facility+"/"+sector {
		return true
	}
	return recv == facility
}
