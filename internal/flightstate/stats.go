package flightstate

import (
	"sync"
	"time"
)

// ewmaAlpha weights the newest one-second sample at 20%.
const ewmaAlpha = 0.2

// statsCounter tracks total messages and a messages-per-second EWMA
// sampled on each tick.
type statsCounter struct {
	mu        sync.Mutex
	total     uint64
	lastTotal uint64
	lastTick  time.Time
	rate      float64
}

func newStatsCounter() *statsCounter {
	return &statsCounter{}
}

func (c *statsCounter) count() {
	c.mu.Lock()
	c.total++
	c.mu.Unlock()
}

// tick folds the messages seen since the previous tick into the EWMA and
// returns the updated counters.
func (c *statsCounter) tick(now time.Time) (total uint64, rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastTick.IsZero() {
		c.lastTick = now
		c.lastTotal = c.total
		return c.total, c.rate
	}
	elapsed := now.Sub(c.lastTick).Seconds()
	if elapsed <= 0 {
		return c.total, c.rate
	}
	sample := float64(c.total-c.lastTotal) / elapsed
	c.rate = ewmaAlpha*sample + (1-ewmaAlpha)*c.rate
	c.lastTick = now
	c.lastTotal = c.total
	return c.total, c.rate
}

func (c *statsCounter) snapshot() (total uint64, rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total, c.rate
}
