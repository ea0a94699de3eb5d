// Package trackid assigns stable synthetic identifiers to surveillance
// tracks that carry no natural key. Legacy clients key their display on
// these ids, so the same physical track must map to the same id for as
// long as it keeps reporting.
package trackid

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EvictAfter is how long a tuple may stay silent before its id is
// forgotten and a later sighting gets a fresh one.
const EvictAfter = 5 * time.Minute

// Key identifies one track across reports.
type Key struct {
	ModeSCode uint32
	TrackNum  int
	Facility  string
}

type entry struct {
	id       string
	lastSeen time.Time
}

// Mapper maps track keys to stable ids. Eviction is lazy on lookup plus
// a periodic sweep.
type Mapper struct {
	mu      sync.Mutex
	entries map[Key]*entry

	evictAfter time.Duration
	now        func() time.Time
	newID      func() string
}

func NewMapper() *Mapper {
	return &Mapper{
		entries:    make(map[Key]*entry),
		evictAfter: EvictAfter,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
}

// Lookup returns the stable id for a key, minting one on first sighting
// or after the previous mapping expired.
func (m *Mapper) Lookup(k Key) string {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[k]; ok && now.Sub(e.lastSeen) < m.evictAfter {
		e.lastSeen = now
		return e.id
	}
	e := &entry{id: m.newID(), lastSeen: now}
	m.entries[k] = e
	return e.id
}

// Len reports the number of live mappings.
func (m *Mapper) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep drops mappings silent for longer than the eviction window.
func (m *Mapper) Sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if now.Sub(e.lastSeen) >= m.evictAfter {
			delete(m.entries, k)
		}
	}
}

// Run sweeps periodically until ctx is cancelled.
func (m *Mapper) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			m.Sweep(now)
		}
	}
}
