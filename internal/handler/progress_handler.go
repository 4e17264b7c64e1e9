package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/academy-api/internal/middleware"
	"github.com/noah-isme/academy-api/internal/service"
	"github.com/noah-isme/academy-api/internal/utils"
)

// ProgressHandler serves the score aggregates for students, groups and courses.
type ProgressHandler struct {
	progress  service.ProgressService
	dashboard service.DashboardService
	logger    zerolog.Logger
}

// NewProgressHandler constructs a progress handler.
func NewProgressHandler(progress service.ProgressService, dashboard service.DashboardService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		progress:  progress,
		dashboard: dashboard,
		logger:    logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register binds the progress routes under /progress plus the analytics view.
func (h *ProgressHandler) Register(router fiber.Router) {
	group := router.Group("/progress")
	group.Get("/students/:id", h.student)
	group.Get("/groups/:id", h.group)
	group.Get("/courses/:id", h.course)

	router.Get("/analytics", h.analytics)
}

func (h *ProgressHandler) student(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.progress.ForStudent(middleware.RequestContext(c), actor, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "student progress retrieved", result)
}

func (h *ProgressHandler) group(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.progress.ForGroup(middleware.RequestContext(c), actor, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "group progress retrieved", result)
}

func (h *ProgressHandler) course(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.progress.ForCourse(middleware.RequestContext(c), actor, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "course progress retrieved", result)
}

func (h *ProgressHandler) analytics(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	result, err := h.dashboard.Analytics(middleware.RequestContext(c), actor)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "analytics retrieved", result)
}
