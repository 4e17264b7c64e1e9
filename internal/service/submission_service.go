package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
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

const (
	maxSubmissionFileSize = 10 << 20
	defaultCodeLanguage   = "python"
)

var allowedSubmissionTypes = []string{
	"application/pdf",
	"application/zip",
	"application/x-zip-compressed",
	"text/plain",
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
}

// FileUploader stores submission attachments and returns their public URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// SubmissionService records student answers and serves them back.
type SubmissionService interface {
	Record(ctx context.Context, actor policy.Actor, homeworkID uint, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	Get(ctx context.Context, actor policy.Actor, id uint) (dto.SubmissionResponse, error)
	Queue(ctx context.Context, actor policy.Actor) (dto.SubmissionQueueResponse, error)
}

type submissionService struct {
	homeworks   repository.HomeworkRepository
	submissions repository.SubmissionRepository
	locks       LockService
	uploader    FileUploader
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance. uploader may be
// nil, in which case file attachments are rejected.
func NewSubmissionService(homeworks repository.HomeworkRepository, submissions repository.SubmissionRepository, locks LockService, uploader FileUploader, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		homeworks:   homeworks,
		submissions: submissions,
		locks:       locks,
		uploader:    uploader,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         systemNow,
	}
}

// Record stores the student's submission. Checks run in a fixed order: the
// homework must exist, the deadline must not have passed, the student must not
// have submitted already, must be enrolled and the homework must be unlocked.
func (s *submissionService) Record(ctx context.Context, actor policy.Actor, homeworkID uint, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/academy-api/internal/service/submission")
	ctx, span := tracer.Start(ctx, "submission.record")
	span.SetAttributes(
		attribute.Int64("submission.homework_id", int64(homeworkID)),
		attribute.Int64("submission.student_id", int64(actor.ID)),
	)
	defer span.End()

	response, outcome, err := s.record(ctx, actor, homeworkID, payload, file)
	observability.Submissions().WithLabelValues(outcome).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return dto.SubmissionResponse{}, err
	}
	return response, nil
}

func (s *submissionService) record(ctx context.Context, actor policy.Actor, homeworkID uint, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, string, error) {
	homework, err := s.homeworks.GetByID(ctx, homeworkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, "not_found", ErrHomeworkNotFound
		}
		return dto.SubmissionResponse{}, "error", err
	}

	now := s.now()
	if homework.IsPastDeadline(now) {
		return dto.SubmissionResponse{}, "deadline_expired", ErrSubmissionDeadline
	}

	if _, err := s.submissions.GetByHomeworkAndStudent(ctx, homeworkID, actor.ID); err == nil {
		return dto.SubmissionResponse{}, "duplicate", ErrAlreadySubmitted
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubmissionResponse{}, "error", err
	}

	target := policy.Target{GroupStudent: homework.Group.HasStudent(actor.ID)}
	if !policy.Allow(actor, policy.SubmitHomework, target) {
		if actor.Role == models.RoleStudent {
			return dto.SubmissionResponse{}, "not_enrolled", ErrNotEnrolled
		}
		return dto.SubmissionResponse{}, "forbidden", ErrForbidden
	}

	locked, err := s.locks.IsLocked(ctx, actor.ID, homework)
	if err != nil {
		return dto.SubmissionResponse{}, "error", err
	}
	if locked {
		return dto.SubmissionResponse{}, "locked", ErrHomeworkLocked
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, "invalid", validationError(err)
	}

	content := strings.TrimSpace(payload.Content)
	if !payload.IsCode {
		content = strings.TrimSpace(s.sanitizer.Sanitize(content))
	}
	if content == "" && file == nil {
		return dto.SubmissionResponse{}, "invalid", ErrEmptySubmission
	}

	fileURL := ""
	if file != nil {
		fileURL, err = s.upload(ctx, actor.ID, file)
		if err != nil {
			return dto.SubmissionResponse{}, "invalid", err
		}
	}

	language := strings.ToLower(strings.TrimSpace(payload.CodeLanguage))
	if language == "" {
		language = defaultCodeLanguage
	}

	submission := models.Submission{
		HomeworkID:   homework.ID,
		StudentID:    actor.ID,
		Content:      content,
		FileURL:      fileURL,
		IsCode:       payload.IsCode,
		CodeLanguage: language,
		SubmittedAt:  now,
	}

	created, err := s.submissions.CreateIfAbsent(ctx, &submission)
	if err != nil {
		return dto.SubmissionResponse{}, "error", err
	}
	if !created {
		return dto.SubmissionResponse{}, "duplicate", ErrAlreadySubmitted
	}

	stored, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, "error", err
	}

	s.logger.Info().Uint("submission_id", stored.ID).Uint("homework_id", homework.ID).Uint("student_id", actor.ID).Msg("submission recorded")

	return dto.NewSubmissionResponse(stored), "created", nil
}

func (s *submissionService) upload(ctx context.Context, studentID uint, file *multipart.FileHeader) (string, error) {
	if s.uploader == nil {
		return "", ErrUploadsDisabled
	}
	if file.Size > maxSubmissionFileSize {
		return "", fmt.Errorf("%w: file exceeds %d bytes", ErrValidation, maxSubmissionFileSize)
	}

	reader, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxSubmissionFileSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	mime := mimetype.Detect(data)
	if !isAllowedMime(mime) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, mime.String())
	}

	name := fmt.Sprintf("student-%d-%s", studentID, file.Filename)
	url, err := s.uploader.Upload(ctx, name, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return url, nil
}

func isAllowedMime(mime *mimetype.MIME) bool {
	for _, allowed := range allowedSubmissionTypes {
		if mime.Is(allowed) {
			return true
		}
	}
	return false
}

func (s *submissionService) Get(ctx context.Context, actor policy.Actor, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !policy.Allow(actor, policy.ViewSubmission, policy.Target{OwnerID: submission.StudentID}) {
		return dto.SubmissionResponse{}, ErrForbidden
	}

	return dto.NewSubmissionResponse(submission), nil
}

// Queue lists the submissions a grader is responsible for: every submission for
// admins, those of the teacher's groups otherwise.
func (s *submissionService) Queue(ctx context.Context, actor policy.Actor) (dto.SubmissionQueueResponse, error) {
	if !policy.Allow(actor, policy.ViewSubmissionQueue, policy.Target{}) {
		return dto.SubmissionQueueResponse{}, ErrForbidden
	}

	filter := repository.SubmissionFilter{}
	if actor.Role == models.RoleTeacher {
		filter.TeacherID = &actor.ID
	}

	submissions, err := s.submissions.List(ctx, filter)
	if err != nil {
		return dto.SubmissionQueueResponse{}, err
	}

	queue := dto.SubmissionQueueResponse{
		Pending: []dto.SubmissionResponse{},
		Graded:  []dto.SubmissionResponse{},
	}
	for _, submission := range submissions {
		if submission.IsGraded {
			queue.Graded = append(queue.Graded, dto.NewSubmissionResponse(submission))
		} else {
			queue.Pending = append(queue.Pending, dto.NewSubmissionResponse(submission))
		}
	}
	return queue, nil
}
