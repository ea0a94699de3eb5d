// Package fanout delivers envelopes to connected downstream clients
// through per-client bounded queues with drop-oldest overflow.
package fanout

import (
	"sync/atomic"

	"swim_feed/internal/flightstate"
)

// DefaultQueueSize is the per-client envelope queue capacity.
const DefaultQueueSize = 5000

// Client is one connected downstream consumer. The hub enqueues; the
// connection's writer goroutine dequeues via C. Close is idempotent and
// safe from either side.
type Client struct {
	name     string
	facility string

	queue chan flightstate.Envelope
	done  chan struct{}

	closed atomic.Bool
	drops  atomic.Uint64
}

// NewClient creates a client tagged with a facility scope. An empty
// facility receives every envelope. size <= 0 picks the default.
func NewClient(name, facility string, size int) *Client {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Client{
		name:     name,
		facility: facility,
		queue:    make(chan flightstate.Envelope, size),
		done:     make(chan struct{}),
	}
}

func (c *Client) Name() string     { return c.name }
func (c *Client) Facility() string { return c.facility }

// C is the envelope stream for the writer goroutine.
func (c *Client) C() <-chan flightstate.Envelope { return c.queue }

// Done is closed when the client is torn down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Drops reports envelopes discarded to overflow.
func (c *Client) Drops() uint64 { return c.drops.Load() }

// Close tears the client down. Envelopes already dequeued are kept;
// anything still queued is abandoned.
func (c *Client) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
	}
}

func (c *Client) isClosed() bool { return c.closed.Load() }

// enqueue offers an envelope without ever blocking the broadcaster. On
// a full queue the oldest envelope is dropped and the enqueue retried
// once.
func (c *Client) enqueue(env flightstate.Envelope) {
	select {
	case c.queue <- env:
		return
	default:
	}
	select {
	case <-c.queue:
		c.drops.Add(1)
	default:
	}
	select {
	case c.queue <- env:
	default:
		c.drops.Add(1)
	}
}
