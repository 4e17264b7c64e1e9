package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/academy-api/internal/middleware"
	"github.com/noah-isme/academy-api/internal/service"
	"github.com/noah-isme/academy-api/internal/utils"
)

// DeadlineHandler lets administrators trigger a deadline sweep on demand.
type DeadlineHandler struct {
	deadlines service.DeadlineService
	logger    zerolog.Logger
}

func NewDeadlineHandler(deadlines service.DeadlineService, logger zerolog.Logger) *DeadlineHandler {
	return &DeadlineHandler{
		deadlines: deadlines,
		logger:    logger.With().Str("component", "deadline_handler").Logger(),
	}
}

// Register expects to be mounted at /deadlines.
func (h *DeadlineHandler) Register(router fiber.Router) {
	router.Post("/sweep", h.sweep)
}

func (h *DeadlineHandler) sweep(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	report, err := h.deadlines.SweepFor(middleware.RequestContext(c), actor)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "deadline sweep completed", report)
}
