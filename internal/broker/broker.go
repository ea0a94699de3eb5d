// Package broker maintains the session to the external message bus and
// turns delivered payloads into raw messages on the in-process bus.
// The wire client itself is external; it is specified here only by the
// Session interface so feeds and tests can supply their own.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"swim_feed/internal/bus"
	"swim_feed/internal/swim"
)

// ErrBrokerFatal is returned when the consumer exhausts its reconnect
// budget. The process treats it as a fatal wiring failure.
var ErrBrokerFatal = errors.New("broker: reconnect attempts exhausted")

// AckFunc acknowledges one delivered message. Skipping the ack makes
// the broker redeliver.
type AckFunc func() error

// Handler receives one delivered payload with its topic and ack handle.
type Handler func(topic string, payload []byte, ack AckFunc)

// Session is one established connection to the external broker. Consume
// blocks, invoking the handler per message, until ctx is cancelled or
// the session fails.
type Session interface {
	Consume(ctx context.Context, h Handler) error
	Close() error
}

// DialFunc establishes a fresh session.
type DialFunc func(ctx context.Context) (Session, error)

// Config controls one feed's consumer.
type Config struct {
	// Name labels the feed in logs ("scds", "sfdps").
	Name string

	// ForceService overrides topic-based service inference. The SFDPS
	// feed uses a separate VPN whose topics do not carry the service
	// name, so every message it delivers is labelled SFDPS.
	ForceService swim.ServiceType

	// ReconnectDelay between session attempts. Default 5 s.
	ReconnectDelay time.Duration

	// MaxAttempts bounds consecutive failed connects; 0 means retry
	// forever.
	MaxAttempts int
}

// Consumer runs one feed: dial, consume, reconnect on failure.
type Consumer struct {
	cfg  Config
	dial DialFunc
	bus  *bus.Bus
	log  *slog.Logger

	inflight sync.WaitGroup

	sleep func(ctx context.Context, d time.Duration) bool // stubbed in tests
	now   func() time.Time
}

func NewConsumer(cfg Config, dial DialFunc, b *bus.Bus, log *slog.Logger) *Consumer {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		cfg:   cfg,
		dial:  dial,
		bus:   b,
		log:   log.With("feed", cfg.Name),
		sleep: sleepCtx,
		now:   time.Now,
	}
}

// Run consumes until ctx is cancelled or the reconnect budget is spent.
// It returns nil on clean shutdown, ErrBrokerFatal when the budget runs
// out, and drains in-flight handlers before returning.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.inflight.Wait()

	attempts := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		sess, err := c.dial(ctx)
		if err != nil {
			attempts++
			c.log.Warn("broker connect failed", "attempt", attempts, "error", err)
			if c.cfg.MaxAttempts > 0 && attempts >= c.cfg.MaxAttempts {
				return fmt.Errorf("%w: %d attempts, last error: %v", ErrBrokerFatal, attempts, err)
			}
			if !c.sleep(ctx, c.cfg.ReconnectDelay) {
				return nil
			}
			continue
		}
		attempts = 0
		c.log.Info("broker session established")

		err = sess.Consume(ctx, c.handle)
		_ = sess.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("broker session lost", "error", err)
		if !c.sleep(ctx, c.cfg.ReconnectDelay) {
			return nil
		}
	}
}

// handle publishes one delivery and then acks it. If emission fails the
// ack is skipped so the broker redelivers.
func (c *Consumer) handle(topic string, payload []byte, ack AckFunc) {
	c.inflight.Add(1)
	defer c.inflight.Done()

	ok := c.emit(topic, payload)
	if !ok {
		return
	}
	if ack == nil {
		return
	}
	if err := ack(); err != nil {
		c.log.Warn("ack failed", "topic", topic, "error", err)
	}
}

func (c *Consumer) emit(topic string, payload []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("message emission panicked; skipping ack for redelivery",
				"topic", topic, "panic", r)
			ok = false
		}
	}()

	service := c.cfg.ForceService
	if service == "" {
		service = swim.InferServiceType(topic)
	}
	c.bus.Publish(&swim.RawMessage{
		Received: c.now().UTC(),
		Topic:    topic,
		Service:  service,
		Payload:  payload,
	})
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
