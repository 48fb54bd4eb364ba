package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/bristywardah/R-Nold/internal/auth"
	"github.com/bristywardah/R-Nold/internal/domain"
)

const userLocal = "user"

func NewAuthMiddleware(manager *auth.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missed header"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: Invalid header format"})
		}

		user, err := manager.Authenticate(c.UserContext(), parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: Invalid token"})
		}

		c.Locals(userLocal, user)
		return c.Next()
	}
}

// NewRequireRoles gates a route group to the given roles. It assumes the auth
// middleware already ran.
func NewRequireRoles(roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missed user"})
		}
		for _, role := range roles {
			if user.Role == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
}

func CurrentUser(c *fiber.Ctx) *domain.User {
	user, _ := c.Locals(userLocal).(*domain.User)
	return user
}
