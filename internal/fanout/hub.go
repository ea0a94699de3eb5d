package fanout

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"swim_feed/internal/bus"
	"swim_feed/internal/flightstate"
)

// Hub fans envelopes out to every connected client whose facility scope
// matches. It never blocks on a slow client; each client's queue absorbs
// or drops.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	log     *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     log,
	}
}

// Add registers a client for broadcast delivery.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("client connected", "client", c.name, "facility", c.facility, "clients", n)
}

// Remove unregisters and closes a client.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.Close()
	if present {
		h.log.Info("client disconnected", "client", c.name, "drops", c.Drops(), "clients", n)
	}
}

// Count reports connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast enqueues an envelope to every matching client. An envelope
// with an empty facility goes to all clients; a client with an empty
// facility receives everything. Matching is case-insensitive. Closed
// clients found along the way are collected.
func (h *Hub) Broadcast(env flightstate.Envelope) {
	h.mu.Lock()
	targets := make([]*Client, 0, len(h.clients))
	var dead []*Client
	for c := range h.clients {
		if c.isClosed() {
			dead = append(dead, c)
			continue
		}
		if facilityMatches(c.facility, env.Facility) {
			targets = append(targets, c)
		}
	}
	for _, c := range dead {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.enqueue(env)
	}
}

// CloseAll tears down every client, waking their writers.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()
	for _, c := range clients {
		c.Close()
	}
}

func facilityMatches(client, envelope string) bool {
	if client == "" || envelope == "" {
		return true
	}
	return strings.EqualFold(client, envelope)
}

// Run forwards store envelopes from the bus to connected clients until
// ctx is cancelled.
func (h *Hub) Run(ctx context.Context, b *bus.Bus) {
	sub := b.Subscribe("ClientFanout", bus.DefaultCapacity)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case msg := <-sub.C():
			if env, ok := msg.(flightstate.Envelope); ok {
				h.Broadcast(env)
			}
		}
	}
}
