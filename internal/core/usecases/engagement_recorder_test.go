package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"
	"unsafe"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/usecases"
)

func impression(campaignID string) domain.EngagementEvent {
	return domain.EngagementEvent{
		CampaignID:     campaignID,
		ServiceID:      "s1",
		EntrepreneurID: "e1",
		Type:           domain.EngagementImpression,
	}
}

func TestEngagementRecorder_AccumulatesAndKeepsCreatedAt(t *testing.T) {
	store := newMockStore()
	rec := usecases.NewEngagementRecorder(store)
	ctx := context.Background()

	if err := rec.Record(ctx, impression("C1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, err := store.Get(ctx, domain.CollectionCampaignReports, "C1")
	if err != nil {
		t.Fatalf("report not created: %v", err)
	}
	createdAt, _ := first.Time("createdAt")

	time.Sleep(2 * time.Millisecond)
	if err := rec.Record(ctx, impression("C1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := rec.Report(ctx, "C1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Impressions != 2 {
		t.Errorf("expected 2 impressions, got %d", report.Impressions)
	}
	if report.Clicks != 0 || report.Conversions != 0 {
		t.Errorf("expected other counters 0, got clicks=%d conversions=%d", report.Clicks, report.Conversions)
	}
	if !report.CreatedAt.Equal(createdAt) {
		t.Errorf("createdAt changed: %v -> %v", createdAt, report.CreatedAt)
	}
	if !report.UpdatedAt.After(createdAt) {
		t.Errorf("updatedAt should advance past createdAt")
	}
	if report.ServiceID != "s1" || report.EntrepreneurID != "e1" {
		t.Errorf("attribution not stored: %+v", report)
	}
}

func TestEngagementRecorder_CountsEachType(t *testing.T) {
	store := newMockStore()
	rec := usecases.NewEngagementRecorder(store)
	ctx := context.Background()

	for _, typ := range []domain.EngagementType{
		domain.EngagementImpression, domain.EngagementImpression, domain.EngagementImpression,
		domain.EngagementClick, domain.EngagementClick, domain.EngagementConversion,
	} {
		ev := impression("C2")
		ev.Type = typ
		if err := rec.Record(ctx, ev); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	report, _ := rec.Report(ctx, "C2")
	if report.Impressions != 3 || report.Clicks != 2 || report.Conversions != 1 {
		t.Errorf("unexpected counters %+v", report)
	}
}

func TestEngagementRecorder_SkipsIncompleteEvents(t *testing.T) {
	store := newMockStore()
	store.mergeFn = func(ctx context.Context, collection, id string, fields domain.Document) error {
		t.Fatalf("no write expected, got merge on %s/%s", collection, id)
		return nil
	}
	rec := usecases.NewEngagementRecorder(store)

	bad := []domain.EngagementEvent{
		{ServiceID: "s1", EntrepreneurID: "e1", Type: domain.EngagementClick},
		{CampaignID: "C1", EntrepreneurID: "e1", Type: domain.EngagementClick},
		{CampaignID: "C1", ServiceID: "s1", Type: domain.EngagementClick},
		{CampaignID: "C1", ServiceID: "s1", EntrepreneurID: "e1", Type: "share"},
	}
	for _, ev := range bad {
		if err := rec.Record(context.Background(), ev); err != nil {
			t.Errorf("expected nil for skipped event, got %v", err)
		}
	}
}

func TestEngagementRecorder_ReturnsStoreError(t *testing.T) {
	boom := errors.New("permission denied")
	store := newMockStore()
	store.mergeFn = func(ctx context.Context, collection, id string, fields domain.Document) error {
		return boom
	}

	err := usecases.NewEngagementRecorder(store).Record(context.Background(), impression("C1"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestEngagementRecorder_EmitIsAsync(t *testing.T) {
	store := newMockStore()
	rec := usecases.NewEngagementRecorder(store)

	ctx, cancel := context.WithCancel(context.Background())
	rec.Emit(ctx, impression("C3"))
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if report, _ := rec.Report(context.Background(), "C3"); report != nil && report.Impressions == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("emitted event was never recorded")
}

func TestEngagementRecorder_EmitCopiesEventBeforeReturning(t *testing.T) {
	store := newMockStore()
	release := make(chan struct{})
	got := make(chan string, 1)
	store.mergeFn = func(ctx context.Context, collection, id string, fields domain.Document) error {
		<-release
		got <- id
		return nil
	}
	rec := usecases.NewEngagementRecorder(store)

	// Request decoders hand out strings backed by buffers that are reused
	// once the handler returns.
	buf := []byte("C4")
	rec.Emit(context.Background(), impression(unsafe.String(&buf[0], len(buf))))
	copy(buf, "XX")
	close(release)

	select {
	case key := <-got:
		if key != "C4" {
			t.Errorf("expected report C4, got %s", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("emitted event was never recorded")
	}
}

type fakeSubscriber struct {
	handler func(ctx context.Context, ev domain.EngagementEvent) error
	err     error
}

func (f *fakeSubscriber) SubscribeEngagements(_ context.Context, h func(ctx context.Context, ev domain.EngagementEvent) error) error {
	f.handler = h
	return f.err
}

func TestEngagementRecorder_ConsumeRecordsDeliveredEvents(t *testing.T) {
	store := newMockStore()
	rec := usecases.NewEngagementRecorder(store)
	sub := &fakeSubscriber{}
	ctx := context.Background()

	if err := rec.Consume(ctx, sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := sub.handler(ctx, impression("C5")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	report, _ := rec.Report(ctx, "C5")
	if report.Impressions != 3 {
		t.Errorf("expected 3 impressions, got %d", report.Impressions)
	}

	boom := errors.New("no stream")
	if err := rec.Consume(ctx, &fakeSubscriber{err: boom}); !errors.Is(err, boom) {
		t.Errorf("expected subscribe error, got %v", err)
	}
}

func TestEngagementRecorder_ReportForUnknownCampaign(t *testing.T) {
	report, err := usecases.NewEngagementRecorder(newMockStore()).Report(context.Background(), "none")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Impressions != 0 || report.CampaignID != "none" {
		t.Errorf("expected zero report, got %+v", report)
	}
}
