package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/halalway/halalway/internal/core/domain"
	"github.com/halalway/halalway/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// NewApp creates the Fiber app shared by the API binary and its tests.
// Strings taken from a request stay valid after it ends: handlers hand ids
// and bodies to stores and background sinks that keep them.
func NewApp(readTimeout, writeTimeout time.Duration) *fiber.App {
	return fiber.New(fiber.Config{
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		BodyLimit:    10 * 1024 * 1024, // payment slips
		AppName:      "HalalWay API",
		Immutable:    true,
	})
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	with := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, requestTimeout) }
	signedIn := RequireRole()
	entrepreneur := RequireRole(domain.RoleEntrepreneur)
	admin := RequireRole(domain.RoleAdmin)
	owners := RequireRole(domain.RoleEntrepreneur, domain.RoleAdmin)

	v1 := app.Group("/v1", AuthMiddleware(deps), DeprecationMiddleware(legacyRoutes))

	// Catalog (public)
	v1.Get("/services", with(ListServicesHandler(deps)))
	v1.Get("/services/:id", with(GetServiceHandler(deps)))
	v1.Get("/promotions", with(ListPromotionsHandler(deps)))
	v1.Get("/recommends", with(ListRecommendsHandler(deps)))
	v1.Get("/blogs", with(ListBlogsHandler(deps)))
	v1.Get("/blogs/:id", with(GetBlogHandler(deps)))
	v1.Get("/navigation", with(NavigationHandler(deps)))
	v1.Get("/recommended", with(ListRecommendsHandler(deps)))
	v1.Get("/shops/:id", with(GetServiceHandler(deps)))
	v1.Post("/engagements", RecordEngagementHandler(deps))

	// Signed-in users
	v1.Post("/services/:id/reviews", signedIn, with(AddReviewHandler(deps)))
	v1.Get("/notifications", signedIn, with(ListNotificationsHandler(deps)))
	v1.Post("/notifications/:id/read", signedIn, with(MarkNotificationReadHandler(deps)))

	// Campaigns
	v1.Post("/campaign-subscriptions", entrepreneur, with(CreateSubscriptionHandler(deps)))
	v1.Get("/campaign-subscriptions", owners, with(ListSubscriptionsHandler(deps)))
	v1.Post("/campaign-subscriptions/:id/slip", entrepreneur, with(UploadSlipHandler(deps)))
	v1.Post("/campaign-subscriptions/:id/approve", admin, with(ApproveSubscriptionHandler(deps)))
	v1.Post("/campaign-subscriptions/:id/reject", admin, with(RejectSubscriptionHandler(deps)))
	v1.Get("/campaigns/:id/report", owners, with(CampaignReportHandler(deps)))

	// Administration
	v1.Delete("/entrepreneurs/:id", admin, RemoveEntrepreneurHandler(deps))

	app.Post("/graphql", AuthMiddleware(deps), GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}
