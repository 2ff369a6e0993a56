package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/usecases"
)

func seedEntrepreneur(store *mockStore, id string, services int) {
	store.put(domain.CollectionUsers, id, domain.Document{"role": "Entrepreneur", "email": id + "@example.com"})
	for i := 0; i < services; i++ {
		sid := fmt.Sprintf("%s-svc-%02d", id, i)
		store.put(domain.CollectionServices, sid, domain.Document{"name": sid, "entrepreneurId": id})
		store.put(domain.CollectionPromotions, sid+"-promo", domain.Document{"title": "deal", "serviceId": sid})
	}
	store.put(domain.CollectionCampaignSubscriptions, id+"-sub", domain.Document{"entrepreneurId": id, "serviceId": id + "-svc-00"})
	store.put(domain.CollectionCampaignReports, id+"-sub", domain.Document{"impressions": 7})
}

func count(t *testing.T, store *mockStore, collection string) int {
	t.Helper()
	docs, err := store.GetAll(context.Background(), collection)
	if err != nil {
		t.Fatal(err)
	}
	return len(docs)
}

func TestRemovalService_RemovesEverything(t *testing.T) {
	store := newMockStore()
	seedEntrepreneur(store, "e1", 12)
	seedEntrepreneur(store, "e2", 1)

	res, err := usecases.NewRemovalService(store).RemoveEntrepreneur(context.Background(), "e1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != usecases.SagaCompleted {
		t.Errorf("expected completed, got %s", res.Status)
	}
	if len(res.Steps) != len(usecases.RemovalSteps) {
		t.Fatalf("expected %d step results, got %d", len(usecases.RemovalSteps), len(res.Steps))
	}
	if res.Steps[2].Deleted != 12 {
		t.Errorf("expected 12 promotions deleted, got %d", res.Steps[2].Deleted)
	}

	if n := count(t, store, domain.CollectionServices); n != 1 {
		t.Errorf("expected only e2's service left, got %d", n)
	}
	if n := count(t, store, domain.CollectionPromotions); n != 1 {
		t.Errorf("expected only e2's promotion left, got %d", n)
	}
	if n := count(t, store, domain.CollectionCampaignSubscriptions); n != 1 {
		t.Errorf("expected only e2's subscription left, got %d", n)
	}
	if n := count(t, store, domain.CollectionCampaignReports); n != 2 {
		t.Errorf("campaign reports must be kept, got %d", n)
	}
	if _, err := store.Get(context.Background(), domain.CollectionUsers, "e1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected user removed, got %v", err)
	}
	for _, chunk := range store.inLookups(domain.CollectionPromotions) {
		if len(chunk) > 10 {
			t.Errorf("promotion lookup of %d ids exceeds the IN limit", len(chunk))
		}
	}
}

func TestRemovalService_ResumesAfterFailure(t *testing.T) {
	store := newMockStore()
	seedEntrepreneur(store, "e1", 3)

	fail := true
	store.deleteFn = func(ctx context.Context, collection, id string) error {
		if collection == domain.CollectionPromotions && fail {
			return errors.New("quota exceeded")
		}
		return store.Store.Delete(ctx, collection, id)
	}

	svc := usecases.NewRemovalService(store)
	res, err := svc.RemoveEntrepreneur(context.Background(), "e1")
	if err == nil {
		t.Fatal("expected failure on promotions step")
	}
	if res.Status != usecases.SagaFailed {
		t.Errorf("expected failed status, got %s", res.Status)
	}

	state, err := svc.State(context.Background(), "e1")
	if err != nil {
		t.Fatalf("saga log missing: %v", err)
	}
	if !state.Done(usecases.StepServices) || !state.Done(usecases.StepSubscriptions) || state.Done(usecases.StepPromotions) {
		t.Errorf("unexpected completed steps %v", state.CompletedSteps)
	}
	if state.LastError == "" {
		t.Error("expected lastError recorded")
	}
	if len(state.ServiceIDs) != 3 {
		t.Errorf("expected captured service ids, got %v", state.ServiceIDs)
	}

	fail = false
	res, err = svc.RemoveEntrepreneur(context.Background(), "e1")
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if res.Status != usecases.SagaCompleted || res.Attempts != 2 {
		t.Errorf("expected completed on attempt 2, got %s/%d", res.Status, res.Attempts)
	}
	if !res.Steps[0].Skipped || !res.Steps[1].Skipped {
		t.Errorf("expected completed steps skipped on resume: %+v", res.Steps)
	}
	if n := count(t, store, domain.CollectionPromotions); n != 0 {
		t.Errorf("expected promotions removed after resume, got %d", n)
	}

	again, err := svc.RemoveEntrepreneur(context.Background(), "e1")
	if err != nil || again.Status != usecases.SagaCompleted {
		t.Errorf("re-running a completed removal should be a no-op, got %v / %v", again, err)
	}
}

func TestRemovalService_ServiceCreatedAfterBegin(t *testing.T) {
	store := newMockStore()
	seedEntrepreneur(store, "e1", 2)
	ctx := context.Background()
	svc := usecases.NewRemovalService(store)

	if _, err := svc.Begin(ctx, "e1"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	store.put(domain.CollectionServices, "late", domain.Document{"name": "late", "entrepreneurId": "e1"})
	store.put(domain.CollectionPromotions, "late-promo", domain.Document{"title": "new deal", "serviceId": "late"})

	for _, step := range usecases.RemovalSteps {
		if _, err := svc.RunStep(ctx, "e1", step); err != nil {
			t.Fatalf("step %s: %v", step, err)
		}
	}

	if n := count(t, store, domain.CollectionServices); n != 0 {
		t.Errorf("expected every service removed, got %d", n)
	}
	if _, err := store.Get(ctx, domain.CollectionPromotions, "late-promo"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("promotion of a late service must be removed, got %v", err)
	}
	state, err := svc.State(ctx, "e1")
	if err != nil {
		t.Fatal(err)
	}
	if len(state.ServiceIDs) != 3 {
		t.Errorf("expected the late service in the log, got %v", state.ServiceIDs)
	}
}

func TestRemovalService_RejectsNonEntrepreneur(t *testing.T) {
	store := newMockStore()
	store.put(domain.CollectionUsers, "u1", domain.Document{"role": "General User"})

	_, err := usecases.NewRemovalService(store).RemoveEntrepreneur(context.Background(), "u1")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRemovalService_UnknownUser(t *testing.T) {
	_, err := usecases.NewRemovalService(newMockStore()).RemoveEntrepreneur(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
