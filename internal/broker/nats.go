package broker

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSConfig describes one feed's connection to the message bus.
type NATSConfig struct {
	URL      string
	Username string
	Password string

	// Queue is the shared consumer group so multiple processes split
	// the feed instead of duplicating it.
	Queue string

	// Subjects are the topics bound by this feed.
	Subjects []string
}

// DialNATS returns a DialFunc establishing JetStream sessions with
// explicit per-message acks, matching the client-acknowledge contract
// the consumer expects.
func DialNATS(cfg NATSConfig) DialFunc {
	return func(ctx context.Context) (Session, error) {
		closed := make(chan struct{})
		opts := []nats.Option{
			nats.Name("swim_feed/" + cfg.Queue),
			nats.UserInfo(cfg.Username, cfg.Password),
			// Reconnection is owned by the Consumer loop, not the client.
			nats.NoReconnect(),
			nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
		}
		nc, err := nats.Connect(cfg.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
		}
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("jetstream context: %w", err)
		}
		return &natsSession{cfg: cfg, nc: nc, js: js, closed: closed}, nil
	}
}

type natsSession struct {
	cfg    NATSConfig
	nc     *nats.Conn
	js     nats.JetStreamContext
	closed chan struct{}
}

func (s *natsSession) Consume(ctx context.Context, h Handler) error {
	msgs := make(chan *nats.Msg, 512)
	subs := make([]*nats.Subscription, 0, len(s.cfg.Subjects))
	for _, subject := range s.cfg.Subjects {
		sub, err := s.js.ChanQueueSubscribe(subject, s.cfg.Queue, msgs,
			nats.ManualAck(), nats.AckExplicit())
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}
	defer func() {
		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.closed:
			return fmt.Errorf("nats connection closed")
		case msg := <-msgs:
			h(msg.Subject, msg.Data, func() error { return msg.Ack() })
		}
	}
}

func (s *natsSession) Close() error {
	s.nc.Close()
	return nil
}
