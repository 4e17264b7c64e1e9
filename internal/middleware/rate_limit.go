package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/academy-api/internal/utils"
)

// RateLimit throttles callers per scope. Authenticated callers are keyed by user
// id, anonymous ones by client IP.
func RateLimit(scope string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 60
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return scope + ":" + callerKey(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, "too many requests")
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/metrics"
		},
	})
}

func callerKey(c *fiber.Ctx) string {
	if actor, ok := ActorFrom(c); ok {
		return "user:" + strconv.FormatUint(uint64(actor.ID), 10)
	}
	return "ip:" + c.IP()
}
