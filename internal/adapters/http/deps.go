package http

import (
	"context"

	"github.com/halalway/halalway/internal/adapters/auth"
	"github.com/halalway/halalway/internal/core/ports"
	"github.com/halalway/halalway/internal/core/usecases"
)

// EntrepreneurRemover runs the entrepreneur removal saga, either in process
// or as a Temporal workflow.
type EntrepreneurRemover interface {
	RemoveEntrepreneur(ctx context.Context, id string) (*usecases.RemovalResult, error)
}

// Pinger is a backing service checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Catalog       *usecases.CatalogService
	Subscriptions *usecases.SubscriptionService
	Feeds         *usecases.FeedService
	Roles         *usecases.RoleRouter
	Engagement    ports.EngagementSink
	Removal       EntrepreneurRemover
	Verifier      *auth.Verifier
	// Checks are keyed by the name reported by /v1/ready.
	Checks map[string]Pinger
}
