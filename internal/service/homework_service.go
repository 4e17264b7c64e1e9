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
	"gorm.io/gorm"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/policy"
	"github.com/noah-isme/academy-api/internal/repository"
)

// HomeworkService manages homeworks and their role-specific listings.
type HomeworkService interface {
	Create(ctx context.Context, actor policy.Actor, payload dto.HomeworkCreateRequest) (dto.HomeworkCreateResponse, error)
	Update(ctx context.Context, actor policy.Actor, id uint, payload dto.HomeworkUpdateRequest) (dto.HomeworkResponse, error)
	Delete(ctx context.Context, actor policy.Actor, id uint) error
	List(ctx context.Context, actor policy.Actor) (dto.HomeworkListResponse, error)
	Detail(ctx context.Context, actor policy.Actor, id uint) (dto.HomeworkDetail, error)
}

type homeworkService struct {
	homeworks     repository.HomeworkRepository
	groups        repository.GroupRepository
	submissions   repository.SubmissionRepository
	locks         LockService
	notifier      Notifier
	activity      ActivityRecorder
	validator     *validator.Validate
	titles        *bluemonday.Policy
	descriptions  *bluemonday.Policy
	warningWindow time.Duration
	logger        zerolog.Logger
	now           func() time.Time
}

// NewHomeworkService constructs the homework service.
func NewHomeworkService(homeworks repository.HomeworkRepository, groups repository.GroupRepository, submissions repository.SubmissionRepository, locks LockService, notifier Notifier, activity ActivityRecorder, validate *validator.Validate, warningWindow time.Duration, logger zerolog.Logger) HomeworkService {
	if warningWindow <= 0 {
		warningWindow = time.Hour
	}
	return &homeworkService{
		homeworks:     homeworks,
		groups:        groups,
		submissions:   submissions,
		locks:         locks,
		notifier:      notifier,
		activity:      activity,
		validator:     validate,
		titles:        bluemonday.StrictPolicy(),
		descriptions:  bluemonday.UGCPolicy(),
		warningWindow: warningWindow,
		logger:        logger.With().Str("component", "homework_service").Logger(),
		now:           systemNow,
	}
}

// Create stores the homework and notifies every current student of the group.
// Notification failures do not undo the homework; they are returned in the report.
func (s *homeworkService) Create(ctx context.Context, actor policy.Actor, payload dto.HomeworkCreateRequest) (dto.HomeworkCreateResponse, error) {
	ctx, span := otel.Tracer("github.com/noah-isme/academy-api/internal/service/homework").Start(ctx, "homework.create")
	span.SetAttributes(attribute.Int64("homework.group_id", int64(payload.GroupID)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.HomeworkCreateResponse{}, validationError(err)
	}

	group, err := s.groups.GetByID(ctx, payload.GroupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.HomeworkCreateResponse{}, ErrGroupNotFound
		}
		return dto.HomeworkCreateResponse{}, err
	}

	if !policy.Allow(actor, policy.CreateHomework, policy.Target{GroupTeacher: group.HasTeacher(actor.ID)}) {
		return dto.HomeworkCreateResponse{}, ErrForbidden
	}

	title := strings.TrimSpace(s.titles.Sanitize(payload.Title))
	if title == "" {
		return dto.HomeworkCreateResponse{}, fmt.Errorf("%w: title is required", ErrValidation)
	}

	sequence, err := s.resolveSequence(ctx, group.ID, payload.Sequence, 0)
	if err != nil {
		return dto.HomeworkCreateResponse{}, err
	}

	authorID := actor.ID
	homework := models.Homework{
		Title:       title,
		Description: strings.TrimSpace(s.descriptions.Sanitize(payload.Description)),
		Deadline:    payload.Deadline.UTC(),
		Sequence:    sequence,
		MaxScore:    100,
		GroupID:     group.ID,
		CreatedByID: &authorID,
	}
	if payload.MaxScore != nil {
		homework.MaxScore = *payload.MaxScore
	}

	if err := s.homeworks.Create(ctx, &homework); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.HomeworkCreateResponse{}, ErrDuplicateSequence
		}
		span.RecordError(err)
		return dto.HomeworkCreateResponse{}, err
	}
	homework.Group = group

	studentIDs, err := s.groups.StudentIDs(ctx, group.ID)
	report := dto.FanOutReport{Failures: []dto.FanOutFailure{}}
	if err != nil {
		s.logger.Warn().Err(err).Uint("homework_id", homework.ID).Msg("failed to load students for homework notifications")
		report.Failures = append(report.Failures, dto.FanOutFailure{Error: err.Error()})
	} else {
		homeworkID := homework.ID
		report = s.notifier.FanOut(ctx, studentIDs, models.Notification{
			Type:              models.NotificationNewHomework,
			Title:             "New homework",
			Message:           fmt.Sprintf("%s was assigned to %s, due %s", homework.Title, group.Name, homework.Deadline.UTC().Format("2006-01-02 15:04 MST")),
			RelatedHomeworkID: &homeworkID,
		})
	}
	span.SetAttributes(
		attribute.Int("homework.notified", report.Delivered),
		attribute.Int("homework.notify_failures", len(report.Failures)),
	)

	s.record(ctx, actor, "homework.created", homework.ID, map[string]interface{}{
		"group_id": group.ID,
		"sequence": homework.Sequence,
		"notified": report.Delivered,
	})
	s.logger.Info().
		Uint("homework_id", homework.ID).
		Uint("group_id", group.ID).
		Int("notified", report.Delivered).
		Int("notify_failures", len(report.Failures)).
		Msg("homework created")

	return dto.HomeworkCreateResponse{
		Homework:      dto.NewHomeworkResponse(homework),
		Notifications: report,
	}, nil
}

func (s *homeworkService) Update(ctx context.Context, actor policy.Actor, id uint, payload dto.HomeworkUpdateRequest) (dto.HomeworkResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.HomeworkResponse{}, validationError(err)
	}

	homework, err := s.load(ctx, id)
	if err != nil {
		return dto.HomeworkResponse{}, err
	}
	if !policy.Allow(actor, policy.EditHomework, authorTarget(homework)) {
		return dto.HomeworkResponse{}, ErrForbidden
	}

	if payload.Title != nil {
		title := strings.TrimSpace(s.titles.Sanitize(*payload.Title))
		if title == "" {
			return dto.HomeworkResponse{}, fmt.Errorf("%w: title is required", ErrValidation)
		}
		homework.Title = title
	}
	if payload.Description != nil {
		homework.Description = strings.TrimSpace(s.descriptions.Sanitize(*payload.Description))
	}
	if payload.Deadline != nil {
		homework.Deadline = payload.Deadline.UTC()
	}
	if payload.MaxScore != nil {
		homework.MaxScore = *payload.MaxScore
	}
	if payload.Sequence != nil && *payload.Sequence != homework.Sequence {
		sequence, err := s.resolveSequence(ctx, homework.GroupID, payload.Sequence, homework.ID)
		if err != nil {
			return dto.HomeworkResponse{}, err
		}
		homework.Sequence = sequence
	}

	if err := s.homeworks.Update(ctx, &homework); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.HomeworkResponse{}, ErrDuplicateSequence
		}
		return dto.HomeworkResponse{}, err
	}

	s.record(ctx, actor, "homework.updated", homework.ID, nil)
	return dto.NewHomeworkResponse(homework), nil
}

func (s *homeworkService) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	homework, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !policy.Allow(actor, policy.DeleteHomework, authorTarget(homework)) {
		return ErrForbidden
	}

	if err := s.homeworks.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrHomeworkNotFound
		}
		return err
	}

	s.record(ctx, actor, "homework.deleted", id, map[string]interface{}{
		"title":    homework.Title,
		"group_id": homework.GroupID,
	})
	s.logger.Info().Uint("homework_id", id).Uint("actor_id", actor.ID).Msg("homework deleted")
	return nil
}

func (s *homeworkService) List(ctx context.Context, actor policy.Actor) (dto.HomeworkListResponse, error) {
	response := dto.HomeworkListResponse{Role: strings.ToLower(string(actor.Role))}

	switch actor.Role {
	case models.RoleStudent:
		items, err := s.listForStudent(ctx, actor.ID)
		if err != nil {
			return dto.HomeworkListResponse{}, err
		}
		response.Items = items
	case models.RoleTeacher:
		items, err := s.listForTeacher(ctx, actor.ID)
		if err != nil {
			return dto.HomeworkListResponse{}, err
		}
		response.Items = items
	case models.RoleAdmin, models.RoleModerator:
		homeworks, err := s.homeworks.List(ctx, repository.HomeworkFilter{})
		if err != nil {
			return dto.HomeworkListResponse{}, err
		}
		response.Items = dto.NewHomeworkResponses(homeworks)
	default:
		return dto.HomeworkListResponse{}, ErrForbidden
	}

	return response, nil
}

func (s *homeworkService) listForStudent(ctx context.Context, studentID uint) ([]dto.StudentHomeworkItem, error) {
	homeworks, err := s.homeworks.List(ctx, repository.HomeworkFilter{StudentID: &studentID})
	if err != nil {
		return nil, err
	}
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{StudentID: &studentID})
	if err != nil {
		return nil, err
	}
	submitted := make(map[uint]bool, len(submissions))
	for _, submission := range submissions {
		submitted[submission.HomeworkID] = true
	}

	now := s.now()
	items := make([]dto.StudentHomeworkItem, 0, len(homeworks))
	for _, homework := range homeworks {
		locked, err := s.locks.IsLocked(ctx, studentID, homework)
		if err != nil {
			return nil, err
		}
		done := submitted[homework.ID]
		items = append(items, dto.StudentHomeworkItem{
			HomeworkResponse: dto.NewHomeworkResponse(homework),
			IsLocked:         locked,
			IsSubmitted:      done,
			IsOverdue:        !done && homework.IsPastDeadline(now),
			DeadlineWarning:  !done && homework.DueWithin(now, s.warningWindow),
		})
	}
	return items, nil
}

func (s *homeworkService) listForTeacher(ctx context.Context, teacherID uint) ([]dto.TeacherHomeworkItem, error) {
	homeworks, err := s.homeworks.List(ctx, repository.HomeworkFilter{TeacherID: &teacherID})
	if err != nil {
		return nil, err
	}

	studentsByGroup := map[uint]int64{}
	items := make([]dto.TeacherHomeworkItem, 0, len(homeworks))
	for _, homework := range homeworks {
		total, ok := studentsByGroup[homework.GroupID]
		if !ok {
			total, err = s.groups.CountStudents(ctx, []uint{homework.GroupID})
			if err != nil {
				return nil, err
			}
			studentsByGroup[homework.GroupID] = total
		}

		homeworkID := homework.ID
		submitted, err := s.submissions.Count(ctx, repository.SubmissionFilter{HomeworkID: &homeworkID})
		if err != nil {
			return nil, err
		}
		graded := true
		gradedCount, err := s.submissions.Count(ctx, repository.SubmissionFilter{HomeworkID: &homeworkID, IsGraded: &graded})
		if err != nil {
			return nil, err
		}

		items = append(items, dto.TeacherHomeworkItem{
			HomeworkResponse: dto.NewHomeworkResponse(homework),
			TotalStudents:    total,
			Submitted:        submitted,
			Graded:           gradedCount,
			Pending:          submitted - gradedCount,
		})
	}
	return items, nil
}

// Detail returns the homework as the actor may see it. Students get their own
// submission and are refused while the homework is locked; staff get every
// submission and the students who have not submitted yet.
func (s *homeworkService) Detail(ctx context.Context, actor policy.Actor, id uint) (dto.HomeworkDetail, error) {
	homework, err := s.load(ctx, id)
	if err != nil {
		return dto.HomeworkDetail{}, err
	}

	detail := dto.HomeworkDetail{
		Homework:      dto.NewHomeworkResponse(homework),
		TotalStudents: len(homework.Group.Students),
	}
	now := s.now()

	if actor.Role == models.RoleStudent {
		if !homework.Group.HasStudent(actor.ID) {
			return dto.HomeworkDetail{}, ErrNotEnrolled
		}
		locked, err := s.locks.IsLocked(ctx, actor.ID, homework)
		if err != nil {
			return dto.HomeworkDetail{}, err
		}
		if locked {
			return dto.HomeworkDetail{}, ErrHomeworkLocked
		}

		submission, err := s.submissions.GetByHomeworkAndStudent(ctx, homework.ID, actor.ID)
		switch {
		case err == nil:
			response := dto.NewSubmissionResponse(submission)
			detail.Submission = &response
			detail.SubmittedCount = 1
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return dto.HomeworkDetail{}, err
		}
		detail.CanSubmit = !homework.IsPastDeadline(now)
		return detail, nil
	}

	if !policy.Allow(actor, policy.ViewGroupStats, policy.Target{GroupTeacher: homework.Group.HasTeacher(actor.ID)}) {
		return dto.HomeworkDetail{}, ErrForbidden
	}

	homeworkID := homework.ID
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{HomeworkID: &homeworkID})
	if err != nil {
		return dto.HomeworkDetail{}, err
	}
	graded := true
	average, err := s.submissions.AverageScore(ctx, repository.SubmissionFilter{HomeworkID: &homeworkID, IsGraded: &graded})
	if err != nil {
		return dto.HomeworkDetail{}, err
	}

	submittedBy := make(map[uint]bool, len(submissions))
	for _, submission := range submissions {
		submittedBy[submission.StudentID] = true
	}
	notSubmitted := make([]dto.UserLite, 0)
	for _, student := range homework.Group.Students {
		if !submittedBy[student.ID] {
			notSubmitted = append(notSubmitted, dto.NewUserLite(student))
		}
	}

	detail.Submissions = dto.NewSubmissionResponses(submissions)
	detail.NotSubmitted = notSubmitted
	detail.SubmittedCount = len(submissions)
	detail.AverageScore = round2(average)
	return detail, nil
}

func (s *homeworkService) load(ctx context.Context, id uint) (models.Homework, error) {
	homework, err := s.homeworks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Homework{}, ErrHomeworkNotFound
		}
		return models.Homework{}, err
	}
	return homework, nil
}

// resolveSequence returns the explicit sequence when it is free in the group, or
// the next free one after the group's last homework when none was given.
func (s *homeworkService) resolveSequence(ctx context.Context, groupID uint, requested *int, excludeID uint) (int, error) {
	if requested == nil {
		last, err := s.homeworks.MaxSequence(ctx, groupID)
		if err != nil {
			return 0, err
		}
		return last + 1, nil
	}

	taken, err := s.homeworks.SequenceTaken(ctx, groupID, *requested, excludeID)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, ErrDuplicateSequence
	}
	return *requested, nil
}

func (s *homeworkService) record(ctx context.Context, actor policy.Actor, action string, homeworkID uint, metadata map[string]interface{}) {
	recordActivity(ctx, s.activity, actor, action, "homework", homeworkID, metadata)
}

func authorTarget(homework models.Homework) policy.Target {
	target := policy.Target{}
	if homework.CreatedByID != nil {
		target.AuthorID = *homework.CreatedByID
	}
	return target
}
