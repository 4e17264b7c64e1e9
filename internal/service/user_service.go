package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/policy"
	"github.com/noah-isme/academy-api/internal/repository"
)

// UserService orchestrates account management for administrators.
type UserService interface {
	List(ctx context.Context, actor policy.Actor, req dto.UserListRequest) ([]dto.UserResponse, error)
	Get(ctx context.Context, actor policy.Actor, id uint) (dto.UserResponse, error)
	Me(ctx context.Context, actor policy.Actor) (dto.UserResponse, error)
	Create(ctx context.Context, actor policy.Actor, payload dto.UserCreateRequest) (dto.UserResponse, error)
	Update(ctx context.Context, actor policy.Actor, id uint, payload dto.UserUpdateRequest) (dto.UserResponse, error)
	ToggleActive(ctx context.Context, actor policy.Actor, id uint) (dto.UserResponse, error)
	Delete(ctx context.Context, actor policy.Actor, id uint) error
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewUserService constructs the user service.
func NewUserService(repo repository.UserRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) UserService {
	return &userService{
		repo:      repo,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) List(ctx context.Context, actor policy.Actor, req dto.UserListRequest) ([]dto.UserResponse, error) {
	if !policy.Allow(actor, policy.ManageUsers, policy.Target{}) {
		return nil, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	filter := repository.UserFilter{Search: strings.TrimSpace(req.Search)}
	if req.Role != "" {
		role, _ := models.ParseRole(req.Role)
		filter.Role = &role
	}
	switch req.Status {
	case "active":
		active := true
		filter.IsActive = &active
	case "blocked":
		active := false
		filter.IsActive = &active
	}

	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponses(users), nil
}

func (s *userService) Get(ctx context.Context, actor policy.Actor, id uint) (dto.UserResponse, error) {
	if actor.ID != id && !policy.Allow(actor, policy.ManageUsers, policy.Target{}) {
		return dto.UserResponse{}, ErrForbidden
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) Me(ctx context.Context, actor policy.Actor) (dto.UserResponse, error) {
	user, err := s.load(ctx, actor.ID)
	if err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) Create(ctx context.Context, actor policy.Actor, payload dto.UserCreateRequest) (dto.UserResponse, error) {
	if !policy.Allow(actor, policy.ManageUsers, policy.Target{}) {
		return dto.UserResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, validationError(err)
	}

	role, ok := models.ParseRole(payload.Role)
	if !ok {
		return dto.UserResponse{}, fmt.Errorf("%w: unknown role %q", ErrValidation, payload.Role)
	}

	user := models.User{
		Username:  strings.TrimSpace(payload.Username),
		FirstName: strings.TrimSpace(payload.FirstName),
		LastName:  strings.TrimSpace(payload.LastName),
		Email:     strings.TrimSpace(payload.Email),
		Phone:     strings.TrimSpace(payload.Phone),
		Role:      role,
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrUsernameTaken
		}
		return dto.UserResponse{}, err
	}

	recordActivity(ctx, s.activity, actor, "user.created", "user", user.ID, map[string]interface{}{
		"username": user.Username,
		"role":     string(user.Role),
	})
	s.logger.Info().Uint("user_id", user.ID).Str("role", string(user.Role)).Msg("user created")
	return dto.NewUserResponse(user), nil
}

func (s *userService) Update(ctx context.Context, actor policy.Actor, id uint, payload dto.UserUpdateRequest) (dto.UserResponse, error) {
	if !policy.Allow(actor, policy.ManageUsers, policy.Target{}) {
		return dto.UserResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, validationError(err)
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}

	changed := make([]string, 0)
	if payload.FirstName != nil {
		user.FirstName = strings.TrimSpace(*payload.FirstName)
		changed = append(changed, "first_name")
	}
	if payload.LastName != nil {
		user.LastName = strings.TrimSpace(*payload.LastName)
		changed = append(changed, "last_name")
	}
	if payload.Email != nil {
		user.Email = strings.TrimSpace(*payload.Email)
		changed = append(changed, "email")
	}
	if payload.Phone != nil {
		user.Phone = strings.TrimSpace(*payload.Phone)
		changed = append(changed, "phone")
	}
	if payload.Role != nil {
		role, ok := models.ParseRole(*payload.Role)
		if !ok {
			return dto.UserResponse{}, fmt.Errorf("%w: unknown role %q", ErrValidation, *payload.Role)
		}
		user.Role = role
		changed = append(changed, "role")
	}
	if payload.IsActive != nil {
		user.IsActive = *payload.IsActive
		changed = append(changed, "is_active")
	}
	if len(changed) == 0 {
		return dto.NewUserResponse(user), nil
	}

	if err := s.repo.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	recordActivity(ctx, s.activity, actor, "user.updated", "user", user.ID, map[string]interface{}{
		"changed_fields": changed,
	})
	return dto.NewUserResponse(user), nil
}

// ToggleActive flips the account between active and blocked.
func (s *userService) ToggleActive(ctx context.Context, actor policy.Actor, id uint) (dto.UserResponse, error) {
	if !policy.Allow(actor, policy.ManageUsers, policy.Target{}) {
		return dto.UserResponse{}, ErrForbidden
	}
	if actor.ID == id {
		return dto.UserResponse{}, fmt.Errorf("%w: you cannot block your own account", ErrValidation)
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}
	user.IsActive = !user.IsActive
	if err := s.repo.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	recordActivity(ctx, s.activity, actor, "user.status_toggled", "user", user.ID, map[string]interface{}{
		"is_active": user.IsActive,
	})
	return dto.NewUserResponse(user), nil
}

func (s *userService) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	if !policy.Allow(actor, policy.ManageUsers, policy.Target{}) {
		return ErrForbidden
	}
	if actor.ID == id {
		return fmt.Errorf("%w: you cannot delete your own account", ErrValidation)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	recordActivity(ctx, s.activity, actor, "user.deleted", "user", id, nil)
	s.logger.Info().Uint("user_id", id).Uint("actor_id", actor.ID).Msg("user deleted")
	return nil
}

func (s *userService) load(ctx context.Context, id uint) (models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
