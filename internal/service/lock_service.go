package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/policy"
	"github.com/noah-isme/academy-api/internal/repository"
)

// LockService decides whether a student may open a homework. A homework is
// locked while any lower-sequence homework of the same group has no submission
// row from the student; an auto-graded 0% row counts as submitted.
type LockService interface {
	IsLocked(ctx context.Context, studentID uint, homework models.Homework) (bool, error)
	IsHomeworkLocked(ctx context.Context, studentID, homeworkID uint) (bool, error)
	Check(ctx context.Context, actor policy.Actor, homeworkID, studentID uint) (dto.LockResponse, error)
}

type lockService struct {
	homeworks repository.HomeworkRepository
}

// NewLockService constructs the lock policy.
func NewLockService(homeworks repository.HomeworkRepository) LockService {
	return &lockService{homeworks: homeworks}
}

func (s *lockService) IsLocked(ctx context.Context, studentID uint, homework models.Homework) (bool, error) {
	missing, err := s.homeworks.CountUnsubmittedBefore(ctx, homework.GroupID, homework.Sequence, studentID)
	if err != nil {
		return false, err
	}
	return missing > 0, nil
}

func (s *lockService) IsHomeworkLocked(ctx context.Context, studentID, homeworkID uint) (bool, error) {
	homework, err := s.homeworks.GetByID(ctx, homeworkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrHomeworkNotFound
		}
		return false, err
	}
	return s.IsLocked(ctx, studentID, homework)
}

// Check answers for the actor. Students always ask about themselves; staff name
// the student explicitly.
func (s *lockService) Check(ctx context.Context, actor policy.Actor, homeworkID, studentID uint) (dto.LockResponse, error) {
	if actor.Role == models.RoleStudent || studentID == 0 {
		studentID = actor.ID
	}

	homework, err := s.homeworks.GetByID(ctx, homeworkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LockResponse{}, ErrHomeworkNotFound
		}
		return dto.LockResponse{}, err
	}

	target := policy.Target{OwnerID: studentID, GroupTeacher: homework.Group.HasTeacher(actor.ID)}
	if !policy.Allow(actor, policy.ViewStudentProgress, target) {
		return dto.LockResponse{}, ErrForbidden
	}

	locked, err := s.IsLocked(ctx, studentID, homework)
	if err != nil {
		return dto.LockResponse{}, err
	}
	return dto.LockResponse{HomeworkID: homeworkID, StudentID: studentID, Locked: locked}, nil
}
