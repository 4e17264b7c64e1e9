package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/observability"
	"github.com/noah-isme/academy-api/internal/policy"
	"github.com/noah-isme/academy-api/internal/repository"
)

const (
	sweepStageAutoGrade = "auto_grade"
	sweepStageWarning   = "deadline_warning"
)

// DeadlineService auto-grades missed homeworks and warns students about
// deadlines that are about to pass. Every insert is guarded by a unique index,
// so sweeps can overlap each other and live submissions safely.
type DeadlineService interface {
	Sweep(ctx context.Context) (dto.SweepReport, error)
	SweepFor(ctx context.Context, actor policy.Actor) (dto.SweepReport, error)
	SweepStudent(ctx context.Context, studentID uint) (int, error)
	Run(ctx context.Context, interval time.Duration)
}

type deadlineService struct {
	homeworks     repository.HomeworkRepository
	groups        repository.GroupRepository
	submissions   repository.SubmissionRepository
	notifier      Notifier
	warningWindow time.Duration
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewDeadlineService constructs the deadline engine. warningWindow is how far
// ahead deadlines trigger a warning; zero means one hour.
func NewDeadlineService(homeworks repository.HomeworkRepository, groups repository.GroupRepository, submissions repository.SubmissionRepository, notifier Notifier, warningWindow time.Duration, logger zerolog.Logger) DeadlineService {
	if warningWindow <= 0 {
		warningWindow = time.Hour
	}
	return &deadlineService{
		homeworks:     homeworks,
		groups:        groups,
		submissions:   submissions,
		notifier:      notifier,
		warningWindow: warningWindow,
		logger:        logger.With().Str("component", "deadline_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/academy-api/internal/service/deadline"),
		now:           systemNow,
	}
}

func (s *deadlineService) SweepFor(ctx context.Context, actor policy.Actor) (dto.SweepReport, error) {
	if !policy.Allow(actor, policy.RunDeadlineSweep, policy.Target{}) {
		return dto.SweepReport{}, ErrForbidden
	}
	return s.Sweep(ctx)
}

func (s *deadlineService) Sweep(ctx context.Context) (dto.SweepReport, error) {
	ctx, span := s.tracer.Start(ctx, "deadline.sweep")
	defer span.End()

	now := s.now()
	report := dto.SweepReport{StartedAt: now, Failures: []dto.SweepFailure{}}
	observability.SweepRuns().Inc()
	defer func() {
		observability.SweepDuration().Observe(time.Since(now).Seconds())
	}()

	expired, err := s.homeworks.List(ctx, repository.HomeworkFilter{DeadlineBefore: &now})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "expired_lookup_failed")
		return report, err
	}
	for _, homework := range expired {
		s.autoGradeHomework(ctx, homework, now, &report)
	}

	until := now.Add(s.warningWindow)
	upcoming, err := s.homeworks.List(ctx, repository.HomeworkFilter{DeadlineAfter: &now, DeadlineUntil: &until})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upcoming_lookup_failed")
		return report, err
	}
	for _, homework := range upcoming {
		s.warnHomework(ctx, homework, &report)
	}

	report.FinishedAt = s.now()
	observability.SweepAutoGraded().Add(float64(report.AutoGraded))
	observability.SweepWarnings().Add(float64(report.WarningsSent))
	observability.SweepFailures().Add(float64(len(report.Failures)))
	span.SetAttributes(
		attribute.Int("deadline.auto_graded", report.AutoGraded),
		attribute.Int("deadline.warnings_sent", report.WarningsSent),
		attribute.Int("deadline.failures", len(report.Failures)),
	)

	s.logger.Info().
		Int("expired_homeworks", len(expired)).
		Int("upcoming_homeworks", len(upcoming)).
		Int("auto_graded", report.AutoGraded).
		Int("warnings_sent", report.WarningsSent).
		Int("failures", len(report.Failures)).
		Msg("deadline sweep finished")

	return report, nil
}

// SweepStudent auto-grades the student's own missed homeworks. It runs on every
// student dashboard visit.
func (s *deadlineService) SweepStudent(ctx context.Context, studentID uint) (int, error) {
	ctx, span := s.tracer.Start(ctx, "deadline.sweep_student", trace.WithAttributes(
		attribute.Int64("deadline.student_id", int64(studentID)),
	))
	defer span.End()

	now := s.now()
	missed, err := s.homeworks.List(ctx, repository.HomeworkFilter{
		StudentID:      &studentID,
		DeadlineBefore: &now,
		UnsubmittedBy:  &studentID,
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	created := 0
	for _, homework := range missed {
		ok, err := s.submissions.CreateIfAbsent(ctx, autoGradedSubmission(homework.ID, studentID, now))
		if err != nil {
			s.logger.Warn().Err(err).Uint("homework_id", homework.ID).Uint("student_id", studentID).Msg("auto-grade failed")
			continue
		}
		if ok {
			created++
		}
	}

	if created > 0 {
		observability.SweepAutoGraded().Add(float64(created))
		s.logger.Info().Uint("student_id", studentID).Int("auto_graded", created).Msg("missed homeworks auto-graded")
	}
	return created, nil
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (s *deadlineService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("deadline sweep failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *deadlineService) autoGradeHomework(ctx context.Context, homework models.Homework, now time.Time, report *dto.SweepReport) {
	studentIDs, err := s.groups.StudentIDs(ctx, homework.GroupID)
	if err != nil {
		s.fail(report, homework.ID, 0, sweepStageAutoGrade, err)
		return
	}
	submitted, err := s.submittedSet(ctx, homework.ID)
	if err != nil {
		s.fail(report, homework.ID, 0, sweepStageAutoGrade, err)
		return
	}

	for _, studentID := range studentIDs {
		if submitted[studentID] {
			continue
		}

		created, err := s.submissions.CreateIfAbsent(ctx, autoGradedSubmission(homework.ID, studentID, now))
		if err != nil {
			s.fail(report, homework.ID, studentID, sweepStageAutoGrade, err)
			continue
		}
		if !created {
			// a real submission or a concurrent sweep won the race
			continue
		}

		report.AutoGraded++
		s.logger.Info().Uint("homework_id", homework.ID).Uint("student_id", studentID).Msg("auto-graded missed homework")
	}
}

func (s *deadlineService) warnHomework(ctx context.Context, homework models.Homework, report *dto.SweepReport) {
	studentIDs, err := s.groups.StudentIDs(ctx, homework.GroupID)
	if err != nil {
		s.fail(report, homework.ID, 0, sweepStageWarning, err)
		return
	}
	submitted, err := s.submittedSet(ctx, homework.ID)
	if err != nil {
		s.fail(report, homework.ID, 0, sweepStageWarning, err)
		return
	}

	homeworkID := homework.ID
	for _, studentID := range studentIDs {
		if submitted[studentID] {
			continue
		}

		key := models.DeadlineWarningKey(homework.ID, studentID)
		created, err := s.notifier.NotifyOnce(ctx, models.Notification{
			UserID:            studentID,
			Type:              models.NotificationDeadlineWarning,
			Title:             "Deadline approaching",
			Message:           fmt.Sprintf("%s is due at %s", homework.Title, homework.Deadline.UTC().Format("2006-01-02 15:04 MST")),
			RelatedHomeworkID: &homeworkID,
			DedupeKey:         &key,
		})
		if err != nil {
			s.fail(report, homework.ID, studentID, sweepStageWarning, err)
			continue
		}
		if created {
			report.WarningsSent++
			s.logger.Info().Uint("homework_id", homework.ID).Uint("student_id", studentID).Msg("deadline warning sent")
		}
	}
}

func (s *deadlineService) submittedSet(ctx context.Context, homeworkID uint) (map[uint]bool, error) {
	ids, err := s.submissions.StudentIDs(ctx, homeworkID)
	if err != nil {
		return nil, err
	}
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func (s *deadlineService) fail(report *dto.SweepReport, homeworkID, studentID uint, stage string, err error) {
	s.logger.Warn().Err(err).Uint("homework_id", homeworkID).Uint("student_id", studentID).Str("stage", stage).Msg("deadline sweep step failed")
	report.Failures = append(report.Failures, dto.SweepFailure{
		HomeworkID: homeworkID,
		StudentID:  studentID,
		Stage:      stage,
		Error:      err.Error(),
	})
}

func autoGradedSubmission(homeworkID, studentID uint, now time.Time) *models.Submission {
	gradedAt := now
	return &models.Submission{
		HomeworkID:   homeworkID,
		StudentID:    studentID,
		Content:      models.AutoGradeContent,
		ScorePercent: 0,
		IsGraded:     true,
		SubmittedAt:  now,
		GradedAt:     &gradedAt,
	}
}
