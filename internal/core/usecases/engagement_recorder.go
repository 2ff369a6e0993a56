package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
	"github.com/halalway/halalway/internal/pkg/metrics"
)

// emitTimeout bounds a fire-and-forget write started by Emit.
const emitTimeout = 10 * time.Second

var counterFields = []string{"impressions", "clicks", "conversions"}

// EngagementRecorder accumulates impression, click and conversion counters
// per campaign in the campaign_reports collection.
type EngagementRecorder struct {
	store ports.DocumentStore
}

// NewEngagementRecorder creates a new EngagementRecorder.
func NewEngagementRecorder(store ports.DocumentStore) *EngagementRecorder {
	return &EngagementRecorder{store: store}
}

// Record adds one to the counter matching ev.Type with a single atomic upsert.
// Events missing an attribution field or carrying an unknown type are
// skipped with a warning and no write. Store failures are logged and
// returned; they are never retried.
func (r *EngagementRecorder) Record(ctx context.Context, ev domain.EngagementEvent) error {
	if !ev.Valid() {
		slog.WarnContext(ctx, "skipping engagement event",
			"campaign_id", ev.CampaignID,
			"service_id", ev.ServiceID,
			"entrepreneur_id", ev.EntrepreneurID,
			"type", ev.Type,
		)
		metrics.EngagementsDropped.WithLabelValues("invalid").Inc()
		return nil
	}

	counter := ev.Type.CounterField()
	fields := domain.Document{
		"campaignId":     ports.SetOnInsert(ev.CampaignID),
		"serviceId":      ports.SetOnInsert(ev.ServiceID),
		"entrepreneurId": ports.SetOnInsert(ev.EntrepreneurID),
		"createdAt":      ports.SetOnInsert(ports.ServerTimestamp()),
		"updatedAt":      ports.ServerTimestamp(),
	}
	for _, f := range counterFields {
		if f == counter {
			fields[f] = ports.Increment(1)
		} else {
			fields[f] = ports.SetOnInsert(int64(0))
		}
	}

	if err := r.store.Merge(ctx, domain.CollectionCampaignReports, ev.CampaignID, fields); err != nil {
		slog.ErrorContext(ctx, "record engagement failed",
			"campaign_id", ev.CampaignID,
			"type", ev.Type,
			"error", err,
		)
		metrics.EngagementsDropped.WithLabelValues("store").Inc()
		return fmt.Errorf("record %s for campaign %s: %w", ev.Type, ev.CampaignID, err)
	}

	metrics.EngagementsRecorded.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

// Emit records ev in the background so rendering never waits on the store.
// It implements ports.EngagementSink.
func (r *EngagementRecorder) Emit(ctx context.Context, ev domain.EngagementEvent) {
	ev = ev.Clone()
	go func() {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
		defer cancel()
		_ = r.Record(bg, ev)
	}()
}

// Consume records every engagement event delivered by sub.
func (r *EngagementRecorder) Consume(ctx context.Context, sub ports.EventSubscriber) error {
	if err := sub.SubscribeEngagements(ctx, r.Record); err != nil {
		return fmt.Errorf("subscribe engagements: %w", err)
	}
	return nil
}

// Report reads the accumulated counters of one campaign. A campaign with no
// recorded events yields a zero report.
func (r *EngagementRecorder) Report(ctx context.Context, campaignID string) (*domain.CampaignReport, error) {
	doc, err := r.store.Get(ctx, domain.CollectionCampaignReports, campaignID)
	if err != nil {
		if isNotFound(err) {
			return &domain.CampaignReport{CampaignID: campaignID}, nil
		}
		return nil, fmt.Errorf("get report %s: %w", campaignID, err)
	}
	var rep domain.CampaignReport
	if err := domain.Decode(doc, &rep); err != nil {
		return nil, err
	}
	rep.CampaignID = campaignID
	return &rep, nil
}
