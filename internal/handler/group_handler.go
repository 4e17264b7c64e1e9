package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/middleware"
	"github.com/noah-isme/academy-api/internal/policy"
	"github.com/noah-isme/academy-api/internal/service"
	"github.com/noah-isme/academy-api/internal/utils"
)

// GroupHandler exposes group CRUD and the teacher/student membership routes.
type GroupHandler struct {
	service service.GroupService
	logger  zerolog.Logger
}

// NewGroupHandler constructs a group handler.
func NewGroupHandler(service service.GroupService, logger zerolog.Logger) *GroupHandler {
	return &GroupHandler{
		service: service,
		logger:  logger.With().Str("component", "group_handler").Logger(),
	}
}

// Register binds group routes under /groups.
func (h *GroupHandler) Register(router fiber.Router) {
	group := router.Group("/groups")
	group.Get("/", h.list)
	group.Post("/", h.create)
	group.Get("/:id", h.get)
	group.Put("/:id", h.update)
	group.Delete("/:id", h.delete)

	group.Post("/:id/students", h.addMember(h.service.AddStudent))
	group.Delete("/:id/students/:userID", h.removeMember(h.service.RemoveStudent))
	group.Post("/:id/teachers", h.addMember(h.service.AddTeacher))
	group.Delete("/:id/teachers/:userID", h.removeMember(h.service.RemoveTeacher))
}

func (h *GroupHandler) list(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	courseID, err := optionalQueryUint(c, "course_id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	groups, err := h.service.List(middleware.RequestContext(c), actor, courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "groups retrieved", groups)
}

func (h *GroupHandler) get(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	group, err := h.service.Get(middleware.RequestContext(c), actor, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "group retrieved", group)
}

func (h *GroupHandler) create(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	var payload dto.GroupRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	group, err := h.service.Create(middleware.RequestContext(c), actor, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendCreated(c, "group created", group)
}

func (h *GroupHandler) update(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var payload dto.GroupRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	group, err := h.service.Update(middleware.RequestContext(c), actor, id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "group updated", group)
}

func (h *GroupHandler) delete(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	if err := h.service.Delete(middleware.RequestContext(c), actor, id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "group deleted", nil)
}

type addMemberFunc func(ctx context.Context, actor policy.Actor, groupID uint, payload dto.MembershipRequest) (dto.GroupResponse, error)

type removeMemberFunc func(ctx context.Context, actor policy.Actor, groupID, userID uint) (dto.GroupResponse, error)

func (h *GroupHandler) addMember(add addMemberFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return unauthorized(c)
		}
		id, err := parseUintParam(c, "id")
		if err != nil {
			return respondError(c, h.logger, err)
		}

		var payload dto.MembershipRequest
		if err := c.BodyParser(&payload); err != nil {
			return invalidPayload(c)
		}

		group, err := add(middleware.RequestContext(c), actor, id, payload)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "group membership updated", group)
	}
}

func (h *GroupHandler) removeMember(remove removeMemberFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := middleware.ActorFrom(c)
		if !ok {
			return unauthorized(c)
		}
		id, err := parseUintParam(c, "id")
		if err != nil {
			return respondError(c, h.logger, err)
		}
		userID, err := parseUintParam(c, "userID")
		if err != nil {
			return respondError(c, h.logger, err)
		}

		group, err := remove(middleware.RequestContext(c), actor, id, userID)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "group membership updated", group)
	}
}
