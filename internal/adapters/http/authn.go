package http

import (
	"context"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/halalway/halalway/internal/core/domain"
)

const (
	localUser = "auth_user"
	localRole = "auth_role"
)

type userCtxKey struct{}

// AuthMiddleware resolves an optional bearer token. Requests without one
// continue as Guest; a token that fails verification is rejected.
func AuthMiddleware(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Next()
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || deps.Verifier == nil {
			return errUnauthorized(c, "bearer token required")
		}
		user, err := deps.Verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			return errUnauthorized(c, "invalid token")
		}

		ctx := context.WithValue(c.UserContext(), userCtxKey{}, user)
		role, err := deps.Roles.RoleFor(ctx, user.UID)
		if err != nil {
			LoggerFromCtx(ctx).Warn("role lookup failed, using default role", "uid", user.UID, "error", err)
		}
		c.Locals(localUser, user)
		c.Locals(localRole, role)
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// RequireRole rejects guests with 401 and signed-in users whose role is not
// listed with 403. With no roles, any signed-in user passes.
func RequireRole(roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentUser(c) == nil {
			return errUnauthorized(c, "sign in required")
		}
		if len(roles) > 0 && !slices.Contains(roles, currentRole(c)) {
			return errForbidden(c, "role not allowed")
		}
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) *domain.AuthUser {
	u, _ := c.Locals(localUser).(*domain.AuthUser)
	return u
}

func currentRole(c *fiber.Ctx) domain.Role {
	if r, ok := c.Locals(localRole).(domain.Role); ok {
		return r
	}
	return domain.RoleGuest
}

// UserFromCtx returns the authenticated user stored by AuthMiddleware, or nil.
func UserFromCtx(ctx context.Context) *domain.AuthUser {
	u, _ := ctx.Value(userCtxKey{}).(*domain.AuthUser)
	return u
}
