package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
)

var _ ports.EventSubscriber = (*Subscriber)(nil)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStream(js); err != nil {
		conn.Close()
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeEngagements delivers every engagement event to handler. Messages
// are acked whatever the outcome and never redelivered.
func (s *Subscriber) SubscribeEngagements(ctx context.Context, handler func(ctx context.Context, ev domain.EngagementEvent) error) error {
	sub, err := s.js.Subscribe(engagementSubject+".>", func(msg *nats.Msg) {
		defer func() { _ = msg.Ack() }()

		var ev domain.EngagementEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.WarnContext(ctx, "malformed engagement message", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "engagement handler failed", "campaign_id", ev.CampaignID, "error", err)
		}
	},
		nats.Durable("engagement-recorder"),
		nats.ManualAck(),
		nats.MaxDeliver(1),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
