package flightstate

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"swim_feed/internal/bus"
	"swim_feed/internal/events"
)

// Config controls store timing. Zero values pick the defaults.
type Config struct {
	// StaleTimeout drops flights with no inbound event for this long.
	StaleTimeout time.Duration
	// SweepInterval is how often the staleness sweeper runs.
	SweepInterval time.Duration
	// StatsInterval is how often a stats envelope is broadcast.
	StatsInterval time.Duration
}

const (
	defaultStaleTimeout  = 10 * time.Minute
	defaultSweepInterval = 60 * time.Second
	defaultStatsInterval = time.Second
)

func (c *Config) applyDefaults() {
	if c.StaleTimeout <= 0 {
		c.StaleTimeout = defaultStaleTimeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaultSweepInterval
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = defaultStatsInterval
	}
}

// Persister is the optional warm-start layer. The store saves flights as
// they change and reloads them on startup.
type Persister interface {
	LoadFlights() ([]*FlightState, error)
	SaveFlight(f *FlightState) error
	DeleteFlight(gufi string) error
}

// Store is the single-writer flight-state reconciliation engine. All
// mutation happens on the Run goroutine; readers take the lock only to
// copy.
type Store struct {
	mu         sync.RWMutex
	flights    map[string]*FlightState
	byCallsign map[string]string // callsign -> gufi, for TDES merge

	bus     *bus.Bus
	log     *slog.Logger
	cfg     Config
	stats   *statsCounter
	persist Persister

	now func() time.Time // stubbed in tests
}

func New(b *bus.Bus, log *slog.Logger, cfg Config) *Store {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		flights:    make(map[string]*FlightState),
		byCallsign: make(map[string]string),
		bus:        b,
		log:        log,
		cfg:        cfg,
		stats:      newStatsCounter(),
		now:        time.Now,
	}
}

// SetPersister attaches a warm-start layer and reloads any flights it
// holds. Call before Run.
func (s *Store) SetPersister(p Persister) error {
	flights, err := p.LoadFlights()
	if err != nil {
		return err
	}
	s.mu.Lock()
	for _, f := range flights {
		if f.Gufi == "" {
			continue
		}
		s.flights[f.Gufi] = f
		if f.Callsign != "" {
			s.byCallsign[f.Callsign] = f.Gufi
		}
	}
	s.mu.Unlock()
	s.persist = p
	if len(flights) > 0 {
		s.log.Info("warm start", "flights", len(flights))
	}
	return nil
}

// Run consumes domain events from the bus until ctx is cancelled. It is
// the only goroutine that mutates flight state.
func (s *Store) Run(ctx context.Context) {
	sub := s.bus.Subscribe("FlightStateStore", bus.DefaultCapacity)
	defer sub.Close()

	sweep := time.NewTicker(s.cfg.SweepInterval)
	defer sweep.Stop()
	statsTick := time.NewTicker(s.cfg.StatsInterval)
	defer statsTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case msg := <-sub.C():
			switch ev := msg.(type) {
			case events.FlightPlanData:
				s.ApplyFlightPlan(ev)
			case events.Departure:
				s.ApplyDeparture(ev)
			}
		case <-sweep.C:
			s.Sweep(s.now())
		case <-statsTick.C:
			s.broadcastStats()
		}
	}
}

// ApplyFlightPlan reconciles one SFDPS (or TAIS-embedded) flight event.
func (s *Store) ApplyFlightPlan(ev events.FlightPlanData) {
	if ev.Gufi == "" {
		// No natural key; cannot create or locate a record.
		s.log.Debug("flight event without gufi dropped", "callsign", ev.Callsign)
		return
	}
	now := s.now()
	s.stats.count()

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flights[ev.Gufi]
	created := false
	if !ok {
		f = &FlightState{
			Gufi:      ev.Gufi,
			Status:    StatusActive,
			FirstSeen: now,
		}
		s.flights[ev.Gufi] = f
		created = true
	}
	if f.Status == StatusCancelled {
		// Terminal; retained only for final-event delivery.
		return
	}

	ch := make(map[string]any)
	cancelled := s.applyHandoff(f, ev, now, ch)
	s.mergeFields(f, ev, ch)
	if !cancelled {
		s.finishHandoff(f, now, ch)
	}

	f.LastSeen = now
	f.MsgCount++
	if f.Callsign != "" {
		s.byCallsign[f.Callsign] = f.Gufi
	}

	if len(ch) > 0 {
		kind := ev.MessageKind
		if kind == "" {
			kind = "FP"
		}
		f.appendLog(now, kind, ch)
	}
	if s.persist != nil {
		if err := s.persist.SaveFlight(f); err != nil {
			s.log.Warn("flight persist failed", "gufi", f.Gufi, "error", err)
		}
	}

	switch {
	case cancelled:
		s.publish(removeEnvelope(now, f.Gufi, RemoveCancelled, f.ControllingFacility))
	case created:
		s.publish(snapshotEnvelope(now, []*FlightState{f.Clone()}, f.ControllingFacility))
	case len(ch) > 0:
		ch["gufi"] = f.Gufi
		if f.Callsign != "" {
			ch["callsign"] = f.Callsign
		}
		s.publish(updateEnvelope(now, f.Gufi, ch, f.ControllingFacility))
	}
}

// ApplyDeparture merges TDES gate/runway/takeoff data into the flight
// with the matching callsign, when one exists.
func (s *Store) ApplyDeparture(ev events.Departure) {
	if ev.Callsign == "" {
		return
	}
	now := s.now()
	s.stats.count()

	s.mu.Lock()
	defer s.mu.Unlock()

	gufi, ok := s.byCallsign[ev.Callsign]
	if !ok {
		return
	}
	f := s.flights[gufi]
	if f == nil || f.Status != StatusActive {
		return
	}

	ch := make(map[string]any)
	setField(&f.Runway, ev.Runway, "runway", ch)
	setField(&f.Gate, ev.Gate, "gate", ch)
	setTimeField(&f.GateOut, ev.GateOut, "gateOut", ch)
	setTimeField(&f.TaxiStart, ev.TaxiStart, "taxiStart", ch)
	setTimeField(&f.Takeoff, ev.Takeoff, "takeoff", ch)
	if len(ch) == 0 {
		return
	}

	f.LastSeen = now
	f.MsgCount++
	f.appendLog(now, "DEP", ch)
	if s.persist != nil {
		if err := s.persist.SaveFlight(f); err != nil {
			s.log.Warn("flight persist failed", "gufi", f.Gufi, "error", err)
		}
	}
	ch["gufi"] = f.Gufi
	ch["callsign"] = f.Callsign
	s.publish(updateEnvelope(now, f.Gufi, ch, f.ControllingFacility))
}

// mergeFields applies last-non-empty-wins merge of the event into the
// record, recording every change under its wire field name.
func (s *Store) mergeFields(f *FlightState, ev events.FlightPlanData, ch map[string]any) {
	setField(&f.FdpsGufi, ev.FdpsGufi, "fdpsGufi", ch)
	setField(&f.Callsign, ev.Callsign, "callsign", ch)
	s.mergeComputerIDs(f, ev.ComputerIDs, ch)

	setField(&f.AircraftType, ev.AircraftType, "aircraftType", ch)
	setField(&f.WakeCategory, ev.WakeCategory, "wakeCategory", ch)
	setField(&f.EquipmentSuffix, ev.EquipmentSuffix, "equipmentSuffix", ch)
	setField(&f.FlightRules, ev.FlightRules, "flightRules", ch)
	setField(&f.Origin, ev.Origin, "origin", ch)
	setField(&f.Destination, ev.Destination, "destination", ch)
	setField(&f.EntryFix, ev.EntryFix, "entryFix", ch)
	setField(&f.ExitFix, ev.ExitFix, "exitFix", ch)
	setField(&f.Route, ev.Route, "route", ch)
	setField(&f.RequestedAltitude, ev.RequestedAltitude, "requestedAltitude", ch)
	setField(&f.AssignedBeacon, ev.AssignedBeacon, "assignedBeacon", ch)
	setField(&f.Runway, ev.Runway, "runway", ch)
	setField(&f.Scratchpad1, ev.Scratchpad1, "scratchpad1", ch)
	setField(&f.Scratchpad2, ev.Scratchpad2, "scratchpad2", ch)
	setField(&f.OwnerSector, ev.OwnerSector, "ownerSector", ch)
	setField(&f.PendingSector, ev.PendingSector, "pendingSector", ch)
	setIntPtr(&f.LeaderDirection, ev.LeaderDirection, "ldrDirection", ch)

	setField(&f.ControllingFacility, ev.ControllingFacility, "controllingFacility", ch)
	setField(&f.ControllingSector, ev.ControllingSector, "controllingSector", ch)
	setField(&f.ReportingFacility, ev.ReportingFacility, "reportingFacility", ch)

	setField(&f.AssignedAltitude, ev.AssignedAltitude, "assignedAltitude", ch)
	setField(&f.InterimAltitude, ev.InterimAltitude, "interimAltitude", ch)
	setIntPtr(&f.ReportedAltitude, ev.ReportedAltitude, "reportedAltitude", ch)

	setFloatPtr(&f.Latitude, ev.Latitude, "lat", ch)
	setFloatPtr(&f.Longitude, ev.Longitude, "lon", ch)
	setIntPtr(&f.GroundSpeed, ev.GroundSpeed, "groundSpeed", ch)
	setIntPtr(&f.GroundTrack, ev.GroundTrack, "groundTrack", ch)
	setIntPtr(&f.VerticalRate, ev.VerticalRate, "verticalRate", ch)
	setField(&f.Squawk, ev.Squawk, "squawk", ch)
	setField(&f.DataLinkCode, ev.DataLinkCode, "dataLinkCode", ch)
	setField(&f.CommunicationID, ev.CommunicationID, "communicationId", ch)
}

// mergeComputerIDs union-merges the per-facility CID map. A facility
// that already holds a different CID is overwritten, but the conflict is
// surfaced as a reconciliation entry in the event log, never silently.
func (s *Store) mergeComputerIDs(f *FlightState, cids map[string]string, ch map[string]any) {
	for fac, cid := range cids {
		if fac == "" || cid == "" {
			continue
		}
		old, exists := f.ComputerIDs[fac]
		if exists && old == cid {
			continue
		}
		if f.ComputerIDs == nil {
			f.ComputerIDs = make(map[string]string)
		}
		if exists && old != cid {
			f.appendLog(s.now(), "CID_RECONCILE", map[string]any{
				"facility": fac, "old": old, "new": cid,
			})
			s.log.Info("computer id reconciled",
				"gufi", f.Gufi, "facility", fac, "old", old, "new", cid)
		}
		f.ComputerIDs[fac] = cid
		f.ComputerID = cid
		ch["computerIds"] = f.ComputerIDs
		ch["computerId"] = cid
	}
}

// Sweep evicts stale flights, clears decayed handoff completions and
// frees terminal records retained for final-event delivery.
func (s *Store) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for gufi, f := range s.flights {
		switch {
		case f.Status != StatusActive:
			// Final envelope was already emitted; free the record.
			s.remove(gufi, f)

		case now.Sub(f.LastSeen) > s.cfg.StaleTimeout:
			f.Status = StatusDropped
			f.appendLog(now, "STALE", map[string]any{"status": StatusDropped})
			s.publish(removeEnvelope(now, gufi, RemoveStale, f.ControllingFacility))
			s.remove(gufi, f)

		case !f.handoffCompletedAt.IsZero() && now.Sub(f.handoffCompletedAt) >= handoffDecay:
			ch := make(map[string]any)
			s.clearCompletion(f, ch)
			if len(ch) > 0 {
				ch["gufi"] = gufi
				s.publish(updateEnvelope(now, gufi, ch, f.ControllingFacility))
			}
		}
	}
}

// remove deletes a record; caller holds the write lock.
func (s *Store) remove(gufi string, f *FlightState) {
	delete(s.flights, gufi)
	if f.Callsign != "" && s.byCallsign[f.Callsign] == gufi {
		delete(s.byCallsign, f.Callsign)
	}
	if s.persist != nil {
		if err := s.persist.DeleteFlight(gufi); err != nil {
			s.log.Warn("flight delete failed", "gufi", gufi, "error", err)
		}
	}
}

// Get returns a copy of one flight.
func (s *Store) Get(gufi string) (*FlightState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flights[gufi]
	if !ok {
		return nil, false
	}
	return f.Clone(), true
}

// Snapshot returns copies of all active flights, ordered by GUFI so
// output is deterministic.
func (s *Store) Snapshot() []*FlightState {
	s.mu.RLock()
	out := make([]*FlightState, 0, len(s.flights))
	for _, f := range s.flights {
		if f.Status == StatusActive {
			out = append(out, f.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Gufi < out[j].Gufi })
	return out
}

// Count returns the number of active flights.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, f := range s.flights {
		if f.Status == StatusActive {
			n++
		}
	}
	return n
}

// Stats returns the rolling message counters.
func (s *Store) Stats() (total uint64, rate float64) {
	return s.stats.snapshot()
}

func (s *Store) broadcastStats() {
	total, rate := s.stats.tick(s.now())
	s.publish(statsEnvelope(s.now(), total, rate, s.Count()))
}

func (s *Store) publish(env Envelope) {
	if s.bus != nil {
		s.bus.Publish(env)
	}
}

// Merge helpers. Empty / nil means "no update"; every applied change is
// recorded under its wire field name.

func setField[T ~string](dst *T, src T, key string, ch map[string]any) {
	if src != "" && src != *dst {
		*dst = src
		ch[key] = src
	}
}

func clearField[T ~string](dst *T, key string, ch map[string]any) {
	if *dst != "" {
		*dst = ""
		ch[key] = ""
	}
}

func setIntPtr(dst **int, src *int, key string, ch map[string]any) {
	if src == nil {
		return
	}
	if *dst != nil && **dst == *src {
		return
	}
	v := *src
	*dst = &v
	ch[key] = v
}

func setFloatPtr(dst **float64, src *float64, key string, ch map[string]any) {
	if src == nil {
		return
	}
	if *dst != nil && **dst == *src {
		return
	}
	v := *src
	*dst = &v
	ch[key] = v
}

func setTimeField(dst **time.Time, src *time.Time, key string, ch map[string]any) {
	if src == nil {
		return
	}
	if *dst != nil && (*dst).Equal(*src) {
		return
	}
	v := *src
	*dst = &v
	ch[key] = v
}
