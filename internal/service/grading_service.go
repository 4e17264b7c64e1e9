package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/observability"
	"github.com/noah-isme/academy-api/internal/policy"
	"github.com/noah-isme/academy-api/internal/repository"
)

// GradingService moves submissions from ungraded to graded. Regrading overwrites
// the previous score and notifies the student again.
type GradingService interface {
	Grade(ctx context.Context, actor policy.Actor, submissionID uint, payload dto.GradeSubmissionRequest) (dto.SubmissionResponse, error)
}

type gradingService struct {
	submissions repository.SubmissionRepository
	notifier    Notifier
	activity    ActivityRecorder
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading workflow.
func NewGradingService(submissions repository.SubmissionRepository, notifier Notifier, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) GradingService {
	return &gradingService{
		submissions: submissions,
		notifier:    notifier,
		activity:    activity,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         systemNow,
	}
}

func (s *gradingService) Grade(ctx context.Context, actor policy.Actor, submissionID uint, payload dto.GradeSubmissionRequest) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/academy-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.update")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if payload.ScorePercent == nil || *payload.ScorePercent < 0 || *payload.ScorePercent > 100 {
		span.SetStatus(codes.Error, "invalid_score")
		return dto.SubmissionResponse{}, ErrInvalidScore
	}
	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, validationError(err)
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.SubmissionResponse{}, err
	}

	target := policy.Target{GroupTeacher: submission.Homework.Group.HasTeacher(actor.ID)}
	if !policy.Allow(actor, policy.GradeSubmission, target) {
		span.SetStatus(codes.Error, "forbidden")
		s.logger.Warn().Uint("submission_id", submissionID).Uint("actor_id", actor.ID).Msg("grading rejected")
		return dto.SubmissionResponse{}, ErrForbidden
	}

	gradedAt := s.now()
	gradedBy := actor.ID
	submission.ScorePercent = *payload.ScorePercent
	submission.TeacherComment = strings.TrimSpace(s.sanitizer.Sanitize(payload.Comment))
	submission.IsGraded = true
	submission.GradedAt = &gradedAt
	submission.GradedByID = &gradedBy

	homeworkID := submission.HomeworkID
	notification := models.Notification{
		UserID:            submission.StudentID,
		Type:              models.NotificationGraded,
		Title:             "Homework graded",
		Message:           fmt.Sprintf("Your submission for %s was graded: %d%%", submission.Homework.Title, submission.ScorePercent),
		RelatedHomeworkID: &homeworkID,
	}

	if err := s.submissions.Grade(ctx, &submission, &notification); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_update_failed")
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	s.notifier.Deliver(ctx, notification)
	observability.Grades().Inc()

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			Actor:      actor,
			Action:     "submission.graded",
			EntityType: "submission",
			EntityID:   &submission.ID,
			Metadata: map[string]interface{}{
				"submission_id": submission.ID,
				"student_id":    submission.StudentID,
				"homework_id":   submission.HomeworkID,
				"score":         submission.ScorePercent,
			},
		})
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("grader_id", actor.ID).
		Int("score", submission.ScorePercent).
		Msg("submission graded")
	span.SetAttributes(attribute.Int("grading.score", submission.ScorePercent))

	return dto.NewSubmissionResponse(submission), nil
}
