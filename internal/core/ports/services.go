package ports

import (
	"context"
	"io"

	"github.com/halalway/halalway/internal/core/domain"
)

// EngagementSink receives engagement events from the rendering layer.
// Emit never blocks on persistence and never fails the caller.
type EngagementSink interface {
	Emit(ctx context.Context, ev domain.EngagementEvent)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishEngagement(ctx context.Context, ev domain.EngagementEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeEngagements(ctx context.Context, handler func(ctx context.Context, ev domain.EngagementEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// AuthSession exposes the authentication state of one client.
type AuthSession interface {
	CurrentUser() *domain.AuthUser
	// Subscribe registers cb for every auth state change.
	Subscribe(cb func(*domain.AuthUser)) (unsubscribe func())
	SignOut(ctx context.Context) error
}

// ObjectStorage stores uploaded files and returns a public URL.
type ObjectStorage interface {
	Upload(ctx context.Context, path, contentType string, body io.Reader) (string, error)
}
