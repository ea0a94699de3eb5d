// Package bus provides the in-process publish/subscribe primitive that
// connects the broker consumer, parser pipeline, flight-state store and
// fanout layer. Each subscriber owns an independent bounded queue with
// drop-oldest overflow, so a slow consumer can never block a producer.
package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCapacity is the per-subscriber queue size when none is given.
const DefaultCapacity = 10000

// Subscriber is one bounded queue attached to a Bus. Read from C until it
// is drained or Done is closed.
type Subscriber struct {
	name string
	ch   chan any
	done chan struct{}

	closed atomic.Bool
	drops  atomic.Uint64

	// lastWarn rate-limits backpressure warnings to one per second.
	lastWarn atomic.Int64
}

// Name returns the subscriber's registration name.
func (s *Subscriber) Name() string { return s.name }

// C is the subscriber's queue. Per-subscriber FIFO except at drops.
func (s *Subscriber) C() <-chan any { return s.ch }

// Done is closed when the subscriber is closed, either by the reader or by
// Bus.Close. Readers should select on it alongside C.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Drops returns the number of messages discarded due to queue overflow.
func (s *Subscriber) Drops() uint64 { return s.drops.Load() }

// Close detaches the subscriber. O(1): the bus collects it lazily on the
// next publish pass. Messages the reader already dequeued are unaffected.
func (s *Subscriber) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.done)
	}
}

// Bus is the process-wide event bus.
type Bus struct {
	mu   sync.Mutex
	subs []*Subscriber

	log       *slog.Logger
	published atomic.Uint64
}

// New creates a bus that logs backpressure through the given logger.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{log: log.With("component", "bus")}
}

// Subscribe registers a named subscriber with the given queue capacity.
// capacity <= 0 uses DefaultCapacity.
func (b *Bus) Subscribe(name string, capacity int) *Subscriber {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Subscriber{
		name: name,
		ch:   make(chan any, capacity),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
	return s
}

// Publish offers msg to every live subscriber without ever blocking. If a
// subscriber's queue is full its oldest entry is dropped and the enqueue is
// retried exactly once. Dead subscribers are collected during the pass.
func (b *Bus) Publish(msg any) {
	b.published.Add(1)

	b.mu.Lock()
	subs := make([]*Subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	var dead []*Subscriber
	for _, s := range subs {
		if s.closed.Load() {
			dead = append(dead, s)
			continue
		}
		b.offer(s, msg)
	}

	if len(dead) > 0 {
		b.collect(dead)
	}
}

func (b *Bus) offer(s *Subscriber, msg any) {
	select {
	case s.ch <- msg:
		return
	default:
	}

	// Queue full: drop the oldest entry and retry once. The retry can still
	// lose the race against other publishers; the message is then dropped.
	select {
	case <-s.ch:
		s.drops.Add(1)
	default:
	}
	select {
	case s.ch <- msg:
	default:
		s.drops.Add(1)
	}

	now := time.Now().UnixNano()
	last := s.lastWarn.Load()
	if now-last >= int64(time.Second) && s.lastWarn.CompareAndSwap(last, now) {
		b.log.Warn("subscriber queue full, dropping oldest",
			"subscriber", s.name, "drops", s.drops.Load())
	}
}

func (b *Bus) collect(dead []*Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[:0]
	for _, s := range b.subs {
		remove := false
		for _, d := range dead {
			if s == d {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, s)
		}
	}
	b.subs = kept
}

// Published returns the total number of messages published.
func (b *Bus) Published() uint64 { return b.published.Load() }

// SubscriberCount returns the number of attached subscribers, including
// closed ones not yet collected.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches every subscriber, waking their readers via Done.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
}
