package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/policy"
	"github.com/noah-isme/academy-api/internal/utils"
)

// Locals keys populated by JWTProtected.
const (
	LocalUserID   = "user_id"
	LocalUserRole = "user_role"
)

// ActorFrom returns the authenticated caller. Role locals may be a models.Role or a
// plain string (tests and older tokens), both are normalised through ParseRole.
func ActorFrom(c *fiber.Ctx) (policy.Actor, bool) {
	id, ok := c.Locals(LocalUserID).(uint)
	if !ok || id == 0 {
		return policy.Actor{}, false
	}

	var role models.Role
	switch value := c.Locals(LocalUserRole).(type) {
	case models.Role:
		role, ok = models.ParseRole(string(value))
	case string:
		role, ok = models.ParseRole(value)
	case nil:
		ok = false
	default:
		role, ok = models.ParseRole(fmt.Sprintf("%v", value))
	}
	if !ok {
		return policy.Actor{}, false
	}

	return policy.Actor{ID: id, Role: role}, true
}

// Authenticated rejects requests that reached it without a resolvable actor.
func Authenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := ActorFrom(c); !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		return c.Next()
	}
}
