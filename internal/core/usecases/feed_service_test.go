package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/usecases"
)

func TestFeedService_WatchReviews(t *testing.T) {
	store := newMockStore()
	store.put(domain.CollectionServices, "s1", domain.Document{"name": "Siam Halal"})
	feed := usecases.NewFeedService(store)
	ctx := context.Background()

	var (
		mu    sync.Mutex
		sizes []int
	)
	unsubscribe, err := feed.WatchReviews(ctx, "s1", func(r []domain.Review) {
		mu.Lock()
		sizes = append(sizes, len(r))
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	if _, err := feed.AddReview(ctx, "u1", "s1", 5, " Great biryani "); err != nil {
		t.Fatalf("add review: %v", err)
	}
	unsubscribe()
	if _, err := feed.AddReview(ctx, "u2", "s1", 4, ""); err != nil {
		t.Fatalf("add review: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sizes) != 2 || sizes[0] != 0 || sizes[1] != 1 {
		t.Errorf("expected pushes [0 1], got %v", sizes)
	}
}

func TestFeedService_AddReview_Validation(t *testing.T) {
	feed := usecases.NewFeedService(newMockStore())

	if _, err := feed.AddReview(context.Background(), "u1", "s1", 6, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for rating 6, got %v", err)
	}
	if _, err := feed.AddReview(context.Background(), "u1", "missing", 3, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown service, got %v", err)
	}
}

func TestFeedService_Notifications(t *testing.T) {
	store := newMockStore()
	store.put(domain.CollectionNotifications, "n1", domain.Document{"userId": "u1", "title": "Hi", "createdAt": "2024-01-01T00:00:00Z"})
	store.put(domain.CollectionNotifications, "n2", domain.Document{"userId": "u1", "title": "Newer", "createdAt": "2024-02-01T00:00:00Z"})
	store.put(domain.CollectionNotifications, "n3", domain.Document{"userId": "u2", "title": "Other"})
	feed := usecases.NewFeedService(store)
	ctx := context.Background()

	list, err := feed.ListNotifications(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "n2" {
		t.Fatalf("expected u1's notifications newest first, got %+v", list)
	}

	if err := feed.MarkRead(ctx, "u2", "n1"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden marking another user's notification, got %v", err)
	}
	if err := feed.MarkRead(ctx, "u1", "n1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	list, _ = feed.ListNotifications(ctx, "u1")
	if !list[1].Read {
		t.Error("expected n1 marked read")
	}
}
