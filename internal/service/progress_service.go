package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/policy"
	"github.com/noah-isme/academy-api/internal/repository"
)

// ProgressCalculator computes the score aggregates used across dashboards.
type ProgressCalculator interface {
	StudentProgress(ctx context.Context, studentID uint) (float64, error)
	GroupAverage(ctx context.Context, groupID uint) (float64, error)
	CourseAverage(ctx context.Context, courseID uint) (float64, error)
}

// ProgressService exposes the calculator to authenticated callers.
type ProgressService interface {
	ProgressCalculator
	ForStudent(ctx context.Context, actor policy.Actor, studentID uint) (dto.StudentProgressResponse, error)
	ForGroup(ctx context.Context, actor policy.Actor, groupID uint) (dto.GroupProgressResponse, error)
	ForCourse(ctx context.Context, actor policy.Actor, courseID uint) (dto.CourseProgressResponse, error)
}

type progressService struct {
	users       repository.UserRepository
	groups      repository.GroupRepository
	courses     repository.CourseRepository
	homeworks   repository.HomeworkRepository
	submissions repository.SubmissionRepository
	logger      zerolog.Logger
}

// NewProgressService constructs the progress calculator.
func NewProgressService(users repository.UserRepository, groups repository.GroupRepository, courses repository.CourseRepository, homeworks repository.HomeworkRepository, submissions repository.SubmissionRepository, logger zerolog.Logger) ProgressService {
	return &progressService{
		users:       users,
		groups:      groups,
		courses:     courses,
		homeworks:   homeworks,
		submissions: submissions,
		logger:      logger.With().Str("component", "progress_service").Logger(),
	}
}

// StudentProgress sums the student's scores over every submission and divides by
// the number of homeworks assigned to all of the student's groups, so a missing
// homework counts as zero.
func (s *progressService) StudentProgress(ctx context.Context, studentID uint) (float64, error) {
	assigned, err := s.homeworks.Count(ctx, repository.HomeworkFilter{StudentID: &studentID})
	if err != nil {
		return 0, err
	}
	if assigned == 0 {
		return 0, nil
	}

	total, err := s.submissions.SumScores(ctx, repository.SubmissionFilter{StudentID: &studentID})
	if err != nil {
		return 0, err
	}

	return round2(float64(total) / float64(assigned)), nil
}

// GroupAverage is the mean StudentProgress of the group's students. A group
// without students or without homeworks averages 0.
func (s *progressService) GroupAverage(ctx context.Context, groupID uint) (float64, error) {
	homeworkCount, err := s.homeworks.Count(ctx, repository.HomeworkFilter{GroupID: &groupID})
	if err != nil {
		return 0, err
	}
	studentIDs, err := s.groups.StudentIDs(ctx, groupID)
	if err != nil {
		return 0, err
	}
	if homeworkCount == 0 || len(studentIDs) == 0 {
		return 0, nil
	}

	var sum float64
	for _, studentID := range studentIDs {
		progress, err := s.StudentProgress(ctx, studentID)
		if err != nil {
			return 0, err
		}
		sum += progress
	}

	return round2(sum / float64(len(studentIDs))), nil
}

// CourseAverage is the mean score of graded submissions in the course's groups.
func (s *progressService) CourseAverage(ctx context.Context, courseID uint) (float64, error) {
	graded := true
	avg, err := s.submissions.AverageScore(ctx, repository.SubmissionFilter{CourseID: &courseID, IsGraded: &graded})
	if err != nil {
		return 0, err
	}
	return round2(avg), nil
}

func (s *progressService) ForStudent(ctx context.Context, actor policy.Actor, studentID uint) (dto.StudentProgressResponse, error) {
	ctx, span := otel.Tracer("github.com/noah-isme/academy-api/internal/service/progress").Start(ctx, "progress.student")
	span.SetAttributes(attribute.Int64("progress.student_id", int64(studentID)))
	defer span.End()

	if _, err := s.users.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentProgressResponse{}, ErrUserNotFound
		}
		return dto.StudentProgressResponse{}, err
	}

	target := policy.Target{OwnerID: studentID}
	if actor.Role == models.RoleTeacher {
		shares, err := s.groups.SharesGroup(ctx, actor.ID, studentID)
		if err != nil {
			return dto.StudentProgressResponse{}, err
		}
		target.GroupTeacher = shares
	}
	if !policy.Allow(actor, policy.ViewStudentProgress, target) {
		return dto.StudentProgressResponse{}, ErrForbidden
	}

	progress, err := s.StudentProgress(ctx, studentID)
	if err != nil {
		span.RecordError(err)
		return dto.StudentProgressResponse{}, err
	}
	return dto.StudentProgressResponse{StudentID: studentID, Progress: progress}, nil
}

func (s *progressService) ForGroup(ctx context.Context, actor policy.Actor, groupID uint) (dto.GroupProgressResponse, error) {
	target, err := groupTarget(ctx, s.groups, actor, groupID)
	if err != nil {
		return dto.GroupProgressResponse{}, err
	}
	if !policy.Allow(actor, policy.ViewGroupProgress, target) {
		return dto.GroupProgressResponse{}, ErrForbidden
	}

	avg, err := s.GroupAverage(ctx, groupID)
	if err != nil {
		return dto.GroupProgressResponse{}, err
	}
	return dto.GroupProgressResponse{GroupID: groupID, Average: avg}, nil
}

func (s *progressService) ForCourse(ctx context.Context, actor policy.Actor, courseID uint) (dto.CourseProgressResponse, error) {
	if !policy.Allow(actor, policy.ViewCourseProgress, policy.Target{}) {
		return dto.CourseProgressResponse{}, ErrForbidden
	}
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseProgressResponse{}, ErrCourseNotFound
		}
		return dto.CourseProgressResponse{}, err
	}

	avg, err := s.CourseAverage(ctx, courseID)
	if err != nil {
		return dto.CourseProgressResponse{}, err
	}
	return dto.CourseProgressResponse{CourseID: courseID, Average: avg}, nil
}

// groupTarget loads the group and describes the actor's membership in it.
func groupTarget(ctx context.Context, groups repository.GroupRepository, actor policy.Actor, groupID uint) (policy.Target, error) {
	group, err := groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.Target{}, ErrGroupNotFound
		}
		return policy.Target{}, err
	}
	return policy.Target{
		GroupTeacher: group.HasTeacher(actor.ID),
		GroupStudent: group.HasStudent(actor.ID),
	}, nil
}
