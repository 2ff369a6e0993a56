package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/core/ports"
)

// FeedService serves the live lists a client keeps open: a service's
// reviews and a user's notifications.
type FeedService struct {
	store ports.DocumentStore
	now   func() time.Time
}

// NewFeedService creates a new FeedService.
func NewFeedService(store ports.DocumentStore) *FeedService {
	return &FeedService{store: store, now: time.Now}
}

// AddReview stores a rating of 1 to 5 for a service.
func (s *FeedService) AddReview(ctx context.Context, userID, serviceID string, rating int, comment string) (*domain.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be 1-5, got %d: %w", rating, domain.ErrInvalidInput)
	}
	if _, err := s.store.Get(ctx, domain.CollectionServices, serviceID); err != nil {
		return nil, fmt.Errorf("service %s: %w", serviceID, err)
	}
	now := s.now().UTC()
	comment = strings.TrimSpace(comment)
	id, err := s.store.Add(ctx, domain.CollectionReviews, domain.Document{
		"serviceId": serviceID,
		"userId":    userID,
		"rating":    rating,
		"comment":   comment,
		"createdAt": now,
	})
	if err != nil {
		return nil, fmt.Errorf("add review: %w", err)
	}
	return &domain.Review{ID: id, ServiceID: serviceID, UserID: userID, Rating: rating, Comment: comment, CreatedAt: now}, nil
}

// WatchReviews streams the reviews of a service, newest first.
func (s *FeedService) WatchReviews(ctx context.Context, serviceID string, onChange func([]domain.Review)) (func(), error) {
	q := ports.Query{Collection: domain.CollectionReviews, Field: "serviceId", Op: ports.OpEqual, Value: serviceID}
	return s.store.Watch(ctx, q, func(docs []domain.Document) {
		onChange(decodeAll[domain.Review](ctx, docs, func(r *domain.Review, id string) { r.ID = id },
			func(a, b domain.Review) bool { return a.CreatedAt.After(b.CreatedAt) }))
	})
}

// ListNotifications returns a user's notifications, newest first.
func (s *FeedService) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	docs, err := s.store.GetWhere(ctx, domain.CollectionNotifications, "userId", ports.OpEqual, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return decodeAll[domain.Notification](ctx, docs, setNotificationID, newerNotification), nil
}

// WatchNotifications streams a user's notifications, newest first.
func (s *FeedService) WatchNotifications(ctx context.Context, userID string, onChange func([]domain.Notification)) (func(), error) {
	q := ports.Query{Collection: domain.CollectionNotifications, Field: "userId", Op: ports.OpEqual, Value: userID}
	return s.store.Watch(ctx, q, func(docs []domain.Document) {
		onChange(decodeAll[domain.Notification](ctx, docs, setNotificationID, newerNotification))
	})
}

// MarkRead flags one of the user's notifications as read.
func (s *FeedService) MarkRead(ctx context.Context, userID, notificationID string) error {
	doc, err := s.store.Get(ctx, domain.CollectionNotifications, notificationID)
	if err != nil {
		return fmt.Errorf("notification %s: %w", notificationID, err)
	}
	if doc.String("userId") != userID {
		return fmt.Errorf("notification %s: %w", notificationID, domain.ErrForbidden)
	}
	return s.store.Update(ctx, domain.CollectionNotifications, notificationID, domain.Document{"read": true})
}

func setNotificationID(n *domain.Notification, id string) { n.ID = id }

func newerNotification(a, b domain.Notification) bool { return a.CreatedAt.After(b.CreatedAt) }

func decodeAll[T any](ctx context.Context, docs []domain.Document, setID func(*T, string), less func(a, b T) bool) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := domain.Decode(d, &v); err != nil {
			slog.WarnContext(ctx, "skipping malformed document", "id", d.ID(), "error", err)
			continue
		}
		setID(&v, d.ID())
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
