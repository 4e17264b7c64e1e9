package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/utils"
)

// UserLookup loads the account behind an authenticated request.
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
}

// ActiveUser re-reads the caller after token validation. Blocked or deleted
// accounts are rejected and the stored role replaces the one in the token.
func ActiveUser(users UserLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := c.Locals(LocalUserID).(uint)
		if !ok || id == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		user, err := users.GetByID(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.SendError(c, fiber.StatusUnauthorized, "account not found")
			}
			return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
		}
		if !user.IsActive {
			return utils.SendError(c, fiber.StatusForbidden, "account is blocked")
		}

		c.Locals(LocalUserRole, user.Role)
		return c.Next()
	}
}
