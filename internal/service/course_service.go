package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/policy"
	"github.com/noah-isme/academy-api/internal/repository"
)

// CourseService manages courses.
type CourseService interface {
	List(ctx context.Context) ([]dto.CourseResponse, error)
	Get(ctx context.Context, id uint) (dto.CourseResponse, error)
	Create(ctx context.Context, actor policy.Actor, payload dto.CourseRequest) (dto.CourseResponse, error)
	Update(ctx context.Context, actor policy.Actor, id uint, payload dto.CourseRequest) (dto.CourseResponse, error)
	Delete(ctx context.Context, actor policy.Actor, id uint) error
}

type courseService struct {
	repo      repository.CourseRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(repo repository.CourseRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) CourseService {
	return &courseService{
		repo:      repo,
		validator: validate,
		sanitizer: bluemonday.UGCPolicy(),
		activity:  activity,
		logger:    logger.With().Str("component", "course_service").Logger(),
	}
}

func (s *courseService) List(ctx context.Context) ([]dto.CourseResponse, error) {
	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.CourseResponse, 0, len(courses))
	for _, course := range courses {
		responses = append(responses, dto.NewCourseResponse(course))
	}
	return responses, nil
}

func (s *courseService) Get(ctx context.Context, id uint) (dto.CourseResponse, error) {
	course, err := s.load(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Create(ctx context.Context, actor policy.Actor, payload dto.CourseRequest) (dto.CourseResponse, error) {
	if !policy.Allow(actor, policy.ManageCourses, policy.Target{}) {
		return dto.CourseResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, validationError(err)
	}

	course := models.Course{
		Name:        strings.TrimSpace(payload.Name),
		Description: strings.TrimSpace(s.sanitizer.Sanitize(payload.Description)),
	}
	if err := s.repo.Create(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	recordActivity(ctx, s.activity, actor, "course.created", "course", course.ID, map[string]interface{}{"name": course.Name})
	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Update(ctx context.Context, actor policy.Actor, id uint, payload dto.CourseRequest) (dto.CourseResponse, error) {
	if !policy.Allow(actor, policy.ManageCourses, policy.Target{}) {
		return dto.CourseResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, validationError(err)
	}

	course, err := s.load(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	course.Name = strings.TrimSpace(payload.Name)
	course.Description = strings.TrimSpace(s.sanitizer.Sanitize(payload.Description))
	if err := s.repo.Update(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	recordActivity(ctx, s.activity, actor, "course.updated", "course", course.ID, nil)
	return dto.NewCourseResponse(course), nil
}

// Delete removes the course and, transitively, its groups, homeworks,
// submissions and homework notifications.
func (s *courseService) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	if !policy.Allow(actor, policy.ManageCourses, policy.Target{}) {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return err
	}

	recordActivity(ctx, s.activity, actor, "course.deleted", "course", id, nil)
	s.logger.Info().Uint("course_id", id).Msg("course deleted")
	return nil
}

func (s *courseService) load(ctx context.Context, id uint) (models.Course, error) {
	course, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, err
	}
	return course, nil
}
