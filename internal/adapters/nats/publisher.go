package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
	"github.com/halalway/halalway/internal/pkg/metrics"
)

const (
	engagementStream  = "HALALWAY_ENGAGEMENT"
	engagementSubject = "halalway.engagement"
)

var (
	_ ports.EventPublisher = (*Publisher)(nil)
	_ ports.EngagementSink = (*Publisher)(nil)
)

const publishTimeout = 5 * time.Second

// jetStream is the part of nats.JetStreamContext the publisher sends with.
type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher implements ports.EventPublisher and ports.EngagementSink using
// NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   jetStream
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
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
	return &Publisher{conn: conn, js: js}, nil
}

func ensureStream(js nats.JetStreamContext) error {
	cfg := nats.StreamConfig{
		Name:      engagementStream,
		Subjects:  []string{engagementSubject + ".>"},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// SubjectFor returns the subject an engagement of type t is published on.
func SubjectFor(t domain.EngagementType) string {
	return engagementSubject + "." + string(t)
}

// PublishEngagement publishes ev and waits for the stream to ack it.
func (p *Publisher) PublishEngagement(ctx context.Context, ev domain.EngagementEvent) error {
	if !ev.Valid() {
		return fmt.Errorf("%w: incomplete engagement event", domain.ErrInvalidInput)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal engagement: %w", err)
	}
	if _, err := p.js.Publish(SubjectFor(ev.Type), data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", SubjectFor(ev.Type), err)
	}
	return nil
}

// Emit publishes ev in the background without failing the caller. Invalid
// events never reach the broker.
func (p *Publisher) Emit(ctx context.Context, ev domain.EngagementEvent) {
	if !ev.Valid() {
		slog.WarnContext(ctx, "skipping engagement event", "campaign_id", ev.CampaignID, "type", ev.Type)
		metrics.EngagementsDropped.WithLabelValues("invalid").Inc()
		return
	}
	ev = ev.Clone()
	go func() {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := p.PublishEngagement(bg, ev); err != nil {
			slog.ErrorContext(bg, "publish engagement failed", "campaign_id", ev.CampaignID, "error", err)
			metrics.EngagementsDropped.WithLabelValues("publish").Inc()
		}
	}()
}

// Ping reports whether the connection is up.
func (p *Publisher) Ping(_ context.Context) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats %s", p.conn.Status())
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

func connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
