package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/policy"
	"github.com/noah-isme/academy-api/internal/repository"
)

// GroupService manages study groups and their memberships.
type GroupService interface {
	List(ctx context.Context, actor policy.Actor, courseID *uint) ([]dto.GroupResponse, error)
	Get(ctx context.Context, actor policy.Actor, id uint) (dto.GroupResponse, error)
	Create(ctx context.Context, actor policy.Actor, payload dto.GroupRequest) (dto.GroupResponse, error)
	Update(ctx context.Context, actor policy.Actor, id uint, payload dto.GroupRequest) (dto.GroupResponse, error)
	Delete(ctx context.Context, actor policy.Actor, id uint) error
	AddStudent(ctx context.Context, actor policy.Actor, groupID uint, payload dto.MembershipRequest) (dto.GroupResponse, error)
	RemoveStudent(ctx context.Context, actor policy.Actor, groupID, userID uint) (dto.GroupResponse, error)
	AddTeacher(ctx context.Context, actor policy.Actor, groupID uint, payload dto.MembershipRequest) (dto.GroupResponse, error)
	RemoveTeacher(ctx context.Context, actor policy.Actor, groupID, userID uint) (dto.GroupResponse, error)
}

type groupService struct {
	groups    repository.GroupRepository
	courses   repository.CourseRepository
	users     repository.UserRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewGroupService constructs the group service.
func NewGroupService(groups repository.GroupRepository, courses repository.CourseRepository, users repository.UserRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) GroupService {
	return &groupService{
		groups:    groups,
		courses:   courses,
		users:     users,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "group_service").Logger(),
	}
}

// List is role scoped: staff see every group, teachers and students only
// the groups they belong to.
func (s *groupService) List(ctx context.Context, actor policy.Actor, courseID *uint) ([]dto.GroupResponse, error) {
	filter := repository.GroupFilter{CourseID: courseID}
	switch actor.Role {
	case models.RoleAdmin, models.RoleModerator:
	case models.RoleTeacher:
		filter.TeacherID = &actor.ID
	case models.RoleStudent:
		filter.StudentID = &actor.ID
	default:
		return nil, ErrForbidden
	}

	groups, err := s.groups.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.GroupResponse, 0, len(groups))
	for _, group := range groups {
		responses = append(responses, dto.NewGroupResponse(group))
	}
	return responses, nil
}

func (s *groupService) Get(ctx context.Context, actor policy.Actor, id uint) (dto.GroupResponse, error) {
	group, err := s.load(ctx, id)
	if err != nil {
		return dto.GroupResponse{}, err
	}

	switch actor.Role {
	case models.RoleAdmin, models.RoleModerator:
	case models.RoleTeacher:
		if !group.HasTeacher(actor.ID) {
			return dto.GroupResponse{}, ErrForbidden
		}
	case models.RoleStudent:
		if !group.HasStudent(actor.ID) {
			return dto.GroupResponse{}, ErrNotEnrolled
		}
	default:
		return dto.GroupResponse{}, ErrForbidden
	}

	return dto.NewGroupResponse(group), nil
}

func (s *groupService) Create(ctx context.Context, actor policy.Actor, payload dto.GroupRequest) (dto.GroupResponse, error) {
	if !policy.Allow(actor, policy.ManageGroups, policy.Target{}) {
		return dto.GroupResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.GroupResponse{}, validationError(err)
	}
	if err := s.ensureCourse(ctx, payload.CourseID); err != nil {
		return dto.GroupResponse{}, err
	}

	group := models.Group{Name: strings.TrimSpace(payload.Name), CourseID: payload.CourseID}
	if err := s.groups.Create(ctx, &group); err != nil {
		return dto.GroupResponse{}, err
	}

	recordActivity(ctx, s.activity, actor, "group.created", "group", group.ID, map[string]interface{}{
		"name":      group.Name,
		"course_id": group.CourseID,
	})
	return dto.NewGroupResponse(group), nil
}

func (s *groupService) Update(ctx context.Context, actor policy.Actor, id uint, payload dto.GroupRequest) (dto.GroupResponse, error) {
	if !policy.Allow(actor, policy.ManageGroups, policy.Target{}) {
		return dto.GroupResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.GroupResponse{}, validationError(err)
	}

	group, err := s.load(ctx, id)
	if err != nil {
		return dto.GroupResponse{}, err
	}
	if payload.CourseID != group.CourseID {
		if err := s.ensureCourse(ctx, payload.CourseID); err != nil {
			return dto.GroupResponse{}, err
		}
	}

	group.Name = strings.TrimSpace(payload.Name)
	group.CourseID = payload.CourseID
	if err := s.groups.Update(ctx, &group); err != nil {
		return dto.GroupResponse{}, err
	}

	recordActivity(ctx, s.activity, actor, "group.updated", "group", group.ID, nil)
	return dto.NewGroupResponse(group), nil
}

func (s *groupService) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	if !policy.Allow(actor, policy.ManageGroups, policy.Target{}) {
		return ErrForbidden
	}
	if err := s.groups.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGroupNotFound
		}
		return err
	}

	recordActivity(ctx, s.activity, actor, "group.deleted", "group", id, nil)
	s.logger.Info().Uint("group_id", id).Msg("group deleted")
	return nil
}

func (s *groupService) AddStudent(ctx context.Context, actor policy.Actor, groupID uint, payload dto.MembershipRequest) (dto.GroupResponse, error) {
	return s.changeMembership(ctx, actor, groupID, payload, models.RoleStudent, "group.student_added", s.groups.AddStudent)
}

func (s *groupService) AddTeacher(ctx context.Context, actor policy.Actor, groupID uint, payload dto.MembershipRequest) (dto.GroupResponse, error) {
	return s.changeMembership(ctx, actor, groupID, payload, models.RoleTeacher, "group.teacher_added", s.groups.AddTeacher)
}

func (s *groupService) RemoveStudent(ctx context.Context, actor policy.Actor, groupID, userID uint) (dto.GroupResponse, error) {
	return s.removeMember(ctx, actor, groupID, userID, "group.student_removed", s.groups.RemoveStudent)
}

func (s *groupService) RemoveTeacher(ctx context.Context, actor policy.Actor, groupID, userID uint) (dto.GroupResponse, error) {
	return s.removeMember(ctx, actor, groupID, userID, "group.teacher_removed", s.groups.RemoveTeacher)
}

// changeMembership adds a user to the group after checking the user carries
// the role the membership requires.
func (s *groupService) changeMembership(ctx context.Context, actor policy.Actor, groupID uint, payload dto.MembershipRequest, role models.Role, action string, add func(context.Context, uint, uint) error) (dto.GroupResponse, error) {
	if !policy.Allow(actor, policy.ManageGroups, policy.Target{}) {
		return dto.GroupResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.GroupResponse{}, validationError(err)
	}
	if _, err := s.load(ctx, groupID); err != nil {
		return dto.GroupResponse{}, err
	}

	user, err := s.users.GetByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GroupResponse{}, ErrUserNotFound
		}
		return dto.GroupResponse{}, err
	}
	if user.Role != role {
		return dto.GroupResponse{}, ErrInvalidMemberRole
	}

	if err := add(ctx, groupID, user.ID); err != nil {
		return dto.GroupResponse{}, err
	}

	recordActivity(ctx, s.activity, actor, action, "group", groupID, map[string]interface{}{"user_id": user.ID})
	group, err := s.load(ctx, groupID)
	if err != nil {
		return dto.GroupResponse{}, err
	}
	return dto.NewGroupResponse(group), nil
}

func (s *groupService) removeMember(ctx context.Context, actor policy.Actor, groupID, userID uint, action string, remove func(context.Context, uint, uint) error) (dto.GroupResponse, error) {
	if !policy.Allow(actor, policy.ManageGroups, policy.Target{}) {
		return dto.GroupResponse{}, ErrForbidden
	}
	if _, err := s.load(ctx, groupID); err != nil {
		return dto.GroupResponse{}, err
	}
	if err := remove(ctx, groupID, userID); err != nil {
		return dto.GroupResponse{}, err
	}

	recordActivity(ctx, s.activity, actor, action, "group", groupID, map[string]interface{}{"user_id": userID})
	group, err := s.load(ctx, groupID)
	if err != nil {
		return dto.GroupResponse{}, err
	}
	return dto.NewGroupResponse(group), nil
}

func (s *groupService) ensureCourse(ctx context.Context, courseID uint) error {
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return err
	}
	return nil
}

func (s *groupService) load(ctx context.Context, id uint) (models.Group, error) {
	group, err := s.groups.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Group{}, ErrGroupNotFound
		}
		return models.Group{}, err
	}
	return group, nil
}
