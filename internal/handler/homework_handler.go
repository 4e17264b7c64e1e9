package handler

import (
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/middleware"
	"github.com/noah-isme/academy-api/internal/service"
	"github.com/noah-isme/academy-api/internal/utils"
)

// HomeworkHandler serves homework management, lock checks and student submissions.
type HomeworkHandler struct {
	homeworks   service.HomeworkService
	locks       service.LockService
	submissions service.SubmissionService
	logger      zerolog.Logger
}

// NewHomeworkHandler constructs a homework handler.
func NewHomeworkHandler(homeworks service.HomeworkService, locks service.LockService, submissions service.SubmissionService, logger zerolog.Logger) *HomeworkHandler {
	return &HomeworkHandler{
		homeworks:   homeworks,
		locks:       locks,
		submissions: submissions,
		logger:      logger.With().Str("component", "homework_handler").Logger(),
	}
}

// Register binds homework routes under /homeworks.
func (h *HomeworkHandler) Register(router fiber.Router) {
	group := router.Group("/homeworks")
	group.Get("/", h.list)
	group.Post("/", h.create)
	group.Get("/:id", h.detail)
	group.Put("/:id", h.update)
	group.Delete("/:id", h.delete)
	group.Get("/:id/lock", h.lock)
	group.Post("/:id/submissions", h.submit)
}

func (h *HomeworkHandler) list(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	result, err := h.homeworks.List(middleware.RequestContext(c), actor)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "homeworks retrieved", result)
}

func (h *HomeworkHandler) create(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	var payload dto.HomeworkCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	result, err := h.homeworks.Create(middleware.RequestContext(c), actor, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendCreated(c, "homework created", result)
}

func (h *HomeworkHandler) detail(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.homeworks.Detail(middleware.RequestContext(c), actor, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "homework retrieved", result)
}

func (h *HomeworkHandler) update(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var payload dto.HomeworkUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	result, err := h.homeworks.Update(middleware.RequestContext(c), actor, id, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "homework updated", result)
}

func (h *HomeworkHandler) delete(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	if err := h.homeworks.Delete(middleware.RequestContext(c), actor, id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "homework deleted", nil)
}

// lock reports the lock state for the caller, or for ?student_id= when staff ask.
func (h *HomeworkHandler) lock(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}
	studentID, err := optionalQueryUint(c, "student_id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var target uint
	if studentID != nil {
		target = *studentID
	}

	result, err := h.locks.Check(middleware.RequestContext(c), actor, id, target)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lock state retrieved", result)
}

// submit accepts either a JSON body or a multipart form with an optional "file" part.
func (h *HomeworkHandler) submit(c *fiber.Ctx) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return respondError(c, h.logger, err)
	}

	var payload dto.SubmissionCreateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return invalidPayload(c)
		}
	}

	var file *multipart.FileHeader
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if header, err := c.FormFile("file"); err == nil {
			file = header
		}
	}

	result, err := h.submissions.Record(middleware.RequestContext(c), actor, id, payload, file)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendCreated(c, "homework submitted", result)
}
