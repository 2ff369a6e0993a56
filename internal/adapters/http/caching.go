package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.Get(fiber.HeaderCacheControl); existing != "" {
			return err
		}
		// Responses to signed-in callers depend on who is asking.
		if c.Get(fiber.HeaderAuthorization) != "" {
			c.Set(fiber.HeaderCacheControl, "private, no-store")
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics":
			ttl = "no-cache"

		case strings.HasPrefix(path, "/v1/blogs"):
			ttl = "public, max-age=600" // editorial content changes rarely

		case path == "/v1/recommends" || path == "/v1/recommended" || path == "/v1/promotions":
			ttl = "public, max-age=60" // campaign approvals should show quickly

		case path == "/v1/navigation":
			ttl = "public, max-age=3600" // guest route tree is static

		case strings.HasPrefix(path, "/v1/services"), strings.HasPrefix(path, "/v1/shops/"):
			ttl = "public, max-age=300"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "private, no-store"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
