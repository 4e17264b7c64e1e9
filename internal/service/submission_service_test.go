package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/repository"
)

func newSubmissions(a *academy, uploader FileUploader) *submissionService {
	svc := NewSubmissionService(a.homeworks, a.submissions, NewLockService(a.homeworks), uploader, newValidator(), testLogger()).(*submissionService)
	svc.now = utcNow
	return svc
}

func TestRecordSubmission(t *testing.T) {
	a := newAcademy(t)
	ctx := context.Background()
	svc := newSubmissions(a, nil)

	homework := a.homework(t, a.group, "Loops", 1, utcNow().Add(time.Hour))

	result, err := svc.Record(ctx, actorOf(a.alice), homework.ID, dto.SubmissionCreateRequest{
		Content:      "print('hi')",
		IsCode:       true,
		CodeLanguage: "Python",
	}, nil)
	require.NoError(t, err)
	require.Equal(t, a.alice.ID, result.StudentID)
	require.Equal(t, "python", result.CodeLanguage)
	require.False(t, result.IsGraded)
	require.False(t, result.IsLate)
	require.Equal(t, int64(1), a.countSubmissions(t, homework.ID))
}

func TestRecordRejectsLateSubmissionWithoutWriting(t *testing.T) {
	a := newAcademy(t)
	svc := newSubmissions(a, nil)

	homework := a.homework(t, a.group, "Late", 1, utcNow().Add(-time.Minute))

	_, err := svc.Record(context.Background(), actorOf(a.alice), homework.ID, dto.SubmissionCreateRequest{Content: "too late"}, nil)
	require.ErrorIs(t, err, ErrSubmissionDeadline)
	require.ErrorIs(t, err, ErrDeadlineExpired)
	require.Zero(t, a.countSubmissions(t, homework.ID))
}

func TestRecordRejectsSecondSubmission(t *testing.T) {
	a := newAcademy(t)
	ctx := context.Background()
	svc := newSubmissions(a, nil)

	homework := a.homework(t, a.group, "Loops", 1, utcNow().Add(time.Hour))

	_, err := svc.Record(ctx, actorOf(a.alice), homework.ID, dto.SubmissionCreateRequest{Content: "first"}, nil)
	require.NoError(t, err)

	_, err = svc.Record(ctx, actorOf(a.alice), homework.ID, dto.SubmissionCreateRequest{Content: "second"}, nil)
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, int64(1), a.countSubmissions(t, homework.ID))

	stored, err := a.submissions.GetByHomeworkAndStudent(ctx, homework.ID, a.alice.ID)
	require.NoError(t, err)
	require.Equal(t, "first", stored.Content)
}

// staleSubmissions never sees existing rows on lookup, so inserts race them.
type staleSubmissions struct {
	repository.SubmissionRepository
}

func (staleSubmissions) GetByHomeworkAndStudent(context.Context, uint, uint) (models.Submission, error) {
	return models.Submission{}, gorm.ErrRecordNotFound
}

func TestRecordLosesRaceToSweep(t *testing.T) {
	a := newAcademy(t)
	ctx := context.Background()
	svc := NewSubmissionService(a.homeworks, staleSubmissions{a.submissions}, NewLockService(a.homeworks), nil, newValidator(), testLogger()).(*submissionService)
	svc.now = utcNow

	homework := a.homework(t, a.group, "Loops", 1, utcNow().Add(time.Minute))
	created, err := a.submissions.CreateIfAbsent(ctx, autoGradedSubmission(homework.ID, a.alice.ID, utcNow()))
	require.NoError(t, err)
	require.True(t, created)

	_, err = svc.Record(ctx, actorOf(a.alice), homework.ID, dto.SubmissionCreateRequest{Content: "just in time"}, nil)
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	require.Equal(t, int64(1), a.countSubmissions(t, homework.ID))

	stored, err := a.submissions.GetByHomeworkAndStudent(ctx, homework.ID, a.alice.ID)
	require.NoError(t, err)
	require.Equal(t, models.AutoGradeContent, stored.Content)
}

func TestRecordRequiresEnrolmentAndUnlock(t *testing.T) {
	a := newAcademy(t)
	ctx := context.Background()
	svc := newSubmissions(a, nil)
	future := utcNow().Add(time.Hour)

	first := a.homework(t, a.group, "First", 1, future)
	second := a.homework(t, a.group, "Second", 2, future)

	_, err := svc.Record(ctx, actorOf(a.outsider), first.ID, dto.SubmissionCreateRequest{Content: "hi"}, nil)
	require.ErrorIs(t, err, ErrNotEnrolled)

	_, err = svc.Record(ctx, actorOf(a.teacher), first.ID, dto.SubmissionCreateRequest{Content: "hi"}, nil)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Record(ctx, actorOf(a.alice), second.ID, dto.SubmissionCreateRequest{Content: "skip ahead"}, nil)
	require.ErrorIs(t, err, ErrHomeworkLocked)
	require.Zero(t, a.countSubmissions(t, second.ID))

	_, err = svc.Record(ctx, actorOf(a.alice), 9999, dto.SubmissionCreateRequest{Content: "hi"}, nil)
	require.ErrorIs(t, err, ErrHomeworkNotFound)

	_, err = svc.Record(ctx, actorOf(a.alice), first.ID, dto.SubmissionCreateRequest{Content: "   "}, nil)
	require.ErrorIs(t, err, ErrEmptySubmission)
}

func TestRecordSanitizesTextButKeepsCode(t *testing.T) {
	a := newAcademy(t)
	ctx := context.Background()
	svc := newSubmissions(a, nil)
	future := utcNow().Add(time.Hour)

	text := a.homework(t, a.group, "Essay", 1, future)
	code := a.homework(t, a.newGroup(t, "PB-102", a.teacher, a.bob), "Script", 1, future)

	result, err := svc.Record(ctx, actorOf(a.alice), text.ID, dto.SubmissionCreateRequest{Content: "<script>x</script>answer"}, nil)
	require.NoError(t, err)
	require.Equal(t, "answer", result.Content)

	result, err = svc.Record(ctx, actorOf(a.bob), code.ID, dto.SubmissionCreateRequest{Content: "if a < b: pass", IsCode: true}, nil)
	require.NoError(t, err)
	require.Equal(t, "if a < b: pass", result.Content)
}

func TestRecordUploadsAttachment(t *testing.T) {
	a := newAcademy(t)
	ctx := context.Background()
	uploader := &stubUploader{}
	svc := newSubmissions(a, uploader)
	future := utcNow().Add(time.Hour)

	homework := a.homework(t, a.group, "Report", 1, future)
	file := newTestFileHeader(t, "report.txt", []byte("plain text report"))

	result, err := svc.Record(ctx, actorOf(a.alice), homework.ID, dto.SubmissionCreateRequest{}, file)
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("https://files.example.com/student-%d-report.txt", a.alice.ID), result.FileURL)
	require.Len(t, uploader.names, 1)

	binary := newTestFileHeader(t, "tool.exe", []byte{0x4d, 0x5a, 0x90, 0x00, 0x03, 0x00, 0x00, 0x00})
	_, err = svc.Record(ctx, actorOf(a.bob), homework.ID, dto.SubmissionCreateRequest{}, binary)
	require.ErrorIs(t, err, ErrUnsupportedFile)
	require.Equal(t, int64(1), a.countSubmissions(t, homework.ID))

	uploader.err = errors.New("storage down")
	_, err = svc.Record(ctx, actorOf(a.bob), homework.ID, dto.SubmissionCreateRequest{}, newTestFileHeader(t, "notes.txt", []byte("notes")))
	require.Error(t, err)
	require.Equal(t, int64(1), a.countSubmissions(t, homework.ID))
}

func TestRecordWithoutUploaderRejectsFiles(t *testing.T) {
	a := newAcademy(t)
	svc := newSubmissions(a, nil)

	homework := a.homework(t, a.group, "Report", 1, utcNow().Add(time.Hour))
	file := newTestFileHeader(t, "report.txt", []byte("plain text report"))

	_, err := svc.Record(context.Background(), actorOf(a.alice), homework.ID, dto.SubmissionCreateRequest{Content: "see file"}, file)
	require.ErrorIs(t, err, ErrUploadsDisabled)
	require.Zero(t, a.countSubmissions(t, homework.ID))
}

func TestGetSubmissionAndQueue(t *testing.T) {
	a := newAcademy(t)
	ctx := context.Background()
	svc := newSubmissions(a, nil)
	future := utcNow().Add(time.Hour)

	homework := a.homework(t, a.group, "Loops", 1, future)
	pending := a.submit(t, homework, a.alice, 0, false)
	a.submit(t, homework, a.bob, 60, true)

	_, err := svc.Get(ctx, actorOf(a.alice), pending.ID)
	require.NoError(t, err)

	_, err = svc.Get(ctx, actorOf(a.bob), pending.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(ctx, actorOf(a.admin), 9999)
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	queue, err := svc.Queue(ctx, actorOf(a.teacher))
	require.NoError(t, err)
	require.Len(t, queue.Pending, 1)
	require.Len(t, queue.Graded, 1)
	require.Equal(t, pending.ID, queue.Pending[0].ID)

	queue, err = svc.Queue(ctx, actorOf(a.otherTeacher))
	require.NoError(t, err)
	require.Empty(t, queue.Pending)
	require.Empty(t, queue.Graded)

	_, err = svc.Queue(ctx, actorOf(a.alice))
	require.ErrorIs(t, err, ErrForbidden)
}
