package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/repository"
)

func newHomeworks(a *academy) *homeworkService {
	svc := NewHomeworkService(
		a.homeworks,
		a.groups,
		a.submissions,
		NewLockService(a.homeworks),
		newRecordingNotifier(a),
		NewActivityService(a.activities, testLogger()),
		newValidator(),
		time.Hour,
		testLogger(),
	).(*homeworkService)
	svc.now = utcNow
	return svc
}

func TestCreateHomeworkNotifiesGroup(t *testing.T) {
	a := newAcademy(t)
	svc := newHomeworks(a)
	ctx := context.Background()

	result, err := svc.Create(ctx, actorOf(a.teacher), dto.HomeworkCreateRequest{
		Title:       "<i>Models</i>",
		Description: "Define the <b>models</b><script>alert(1)</script>",
		Deadline:    utcNow().Add(48 * time.Hour),
		GroupID:     a.group.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "Models", result.Homework.Title)
	require.NotContains(t, result.Homework.Description, "script")
	require.Equal(t, 1, result.Homework.Sequence)
	require.Equal(t, 100, result.Homework.MaxScore)
	require.Equal(t, 2, result.Notifications.Attempted)
	require.Equal(t, 2, result.Notifications.Delivered)
	require.Empty(t, result.Notifications.Failures)

	for _, student := range []models.User{a.alice, a.bob} {
		count, err := a.notifications.Count(ctx, student.ID, models.NotificationNewHomework, result.Homework.ID)
		require.NoError(t, err)
		require.Equal(t, int64(1), count)
	}
	outsider, err := a.notifications.Count(ctx, a.outsider.ID, models.NotificationNewHomework, result.Homework.ID)
	require.NoError(t, err)
	require.Zero(t, outsider)

	logs, total, err := a.activities.List(ctx, repository.ActivityLogFilter{EntityType: "homework"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "homework.created", logs[0].Action)
}

func TestCreateHomeworkSequences(t *testing.T) {
	a := newAcademy(t)
	svc := newHomeworks(a)
	ctx := context.Background()
	deadline := utcNow().Add(48 * time.Hour)

	first, err := svc.Create(ctx, actorOf(a.teacher), dto.HomeworkCreateRequest{Title: "One", Deadline: deadline, GroupID: a.group.ID, Sequence: intPointer(5)})
	require.NoError(t, err)
	require.Equal(t, 5, first.Homework.Sequence)

	next, err := svc.Create(ctx, actorOf(a.teacher), dto.HomeworkCreateRequest{Title: "Two", Deadline: deadline, GroupID: a.group.ID})
	require.NoError(t, err)
	require.Equal(t, 6, next.Homework.Sequence)

	_, err = svc.Create(ctx, actorOf(a.teacher), dto.HomeworkCreateRequest{Title: "Clash", Deadline: deadline, GroupID: a.group.ID, Sequence: intPointer(5)})
	require.ErrorIs(t, err, ErrDuplicateSequence)
	require.ErrorIs(t, err, ErrConflict)

	// sequences are per group
	other := a.newGroup(t, "PB-102", a.teacher)
	_, err = svc.Create(ctx, actorOf(a.teacher), dto.HomeworkCreateRequest{Title: "Elsewhere", Deadline: deadline, GroupID: other.ID, Sequence: intPointer(5)})
	require.NoError(t, err)
}

func TestCreateHomeworkPermissions(t *testing.T) {
	a := newAcademy(t)
	svc := newHomeworks(a)
	ctx := context.Background()
	payload := dto.HomeworkCreateRequest{Title: "Models", Deadline: utcNow().Add(time.Hour), GroupID: a.group.ID}

	_, err := svc.Create(ctx, actorOf(a.otherTeacher), payload)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(ctx, actorOf(a.alice), payload)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(ctx, actorOf(a.moderator), payload)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(ctx, actorOf(a.admin), payload)
	require.NoError(t, err)

	payload.GroupID = 9999
	_, err = svc.Create(ctx, actorOf(a.admin), payload)
	require.ErrorIs(t, err, ErrGroupNotFound)

	_, err = svc.Create(ctx, actorOf(a.admin), dto.HomeworkCreateRequest{GroupID: a.group.ID})
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateAndDeleteAreAuthorOnly(t *testing.T) {
	a := newAcademy(t)
	svc := newHomeworks(a)
	ctx := context.Background()

	require.NoError(t, a.groups.AddTeacher(ctx, a.group.ID, a.otherTeacher.ID))
	homework := a.homework(t, a.group, "Models", 1, utcNow().Add(time.Hour))

	// co-teaching the group is not enough to edit another teacher's homework
	title := "Renamed"
	_, err := svc.Update(ctx, actorOf(a.otherTeacher), homework.ID, dto.HomeworkUpdateRequest{Title: &title})
	require.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.Update(ctx, actorOf(a.teacher), homework.ID, dto.HomeworkUpdateRequest{Title: &title, Sequence: intPointer(3)})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Title)
	require.Equal(t, 3, updated.Sequence)

	a.homework(t, a.group, "Queries", 4, utcNow().Add(time.Hour))
	_, err = svc.Update(ctx, actorOf(a.teacher), homework.ID, dto.HomeworkUpdateRequest{Sequence: intPointer(4)})
	require.ErrorIs(t, err, ErrDuplicateSequence)

	require.ErrorIs(t, svc.Delete(ctx, actorOf(a.otherTeacher), homework.ID), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, actorOf(a.teacher), homework.ID))
	require.ErrorIs(t, svc.Delete(ctx, actorOf(a.teacher), homework.ID), ErrHomeworkNotFound)
}

func TestDeleteHomeworkRemovesSubmissions(t *testing.T) {
	a := newAcademy(t)
	svc := newHomeworks(a)
	ctx := context.Background()

	homework := a.homework(t, a.group, "Models", 1, utcNow().Add(time.Hour))
	a.submit(t, homework, a.alice, 50, true)

	require.NoError(t, svc.Delete(ctx, actorOf(a.admin), homework.ID))
	require.Zero(t, a.countSubmissions(t, homework.ID))
}

func TestListHomeworksForStudent(t *testing.T) {
	a := newAcademy(t)
	svc := newHomeworks(a)
	ctx := context.Background()

	overdue := a.homework(t, a.group, "Overdue", 1, utcNow().Add(-time.Hour))
	a.homework(t, a.group, "Soon", 2, utcNow().Add(30*time.Minute))
	done := a.homework(t, a.newGroup(t, "PB-102", a.otherTeacher, a.alice), "Done", 1, utcNow().Add(-time.Hour))
	a.submit(t, done, a.alice, 90, true)

	result, err := svc.List(ctx, actorOf(a.alice))
	require.NoError(t, err)
	require.Equal(t, "student", result.Role)

	items, ok := result.Items.([]dto.StudentHomeworkItem)
	require.True(t, ok)
	require.Len(t, items, 3)

	byTitle := map[string]dto.StudentHomeworkItem{}
	for _, item := range items {
		byTitle[item.Title] = item
	}

	require.True(t, byTitle["Overdue"].IsOverdue)
	require.False(t, byTitle["Overdue"].IsLocked)
	require.Equal(t, overdue.ID, byTitle["Overdue"].ID)

	require.True(t, byTitle["Soon"].IsLocked)
	require.True(t, byTitle["Soon"].DeadlineWarning)
	require.False(t, byTitle["Soon"].IsOverdue)

	require.True(t, byTitle["Done"].IsSubmitted)
	require.False(t, byTitle["Done"].IsOverdue)

	outsider, err := svc.List(ctx, actorOf(a.outsider))
	require.NoError(t, err)
	require.Empty(t, outsider.Items)
}

func TestListHomeworksForStaff(t *testing.T) {
	a := newAcademy(t)
	svc := newHomeworks(a)
	ctx := context.Background()

	homework := a.homework(t, a.group, "Models", 1, utcNow().Add(time.Hour))
	a.submit(t, homework, a.alice, 80, true)
	a.submit(t, homework, a.bob, 0, false)
	a.homework(t, a.newGroup(t, "PB-102", a.otherTeacher), "Foreign", 1, utcNow().Add(time.Hour))

	result, err := svc.List(ctx, actorOf(a.teacher))
	require.NoError(t, err)
	items, ok := result.Items.([]dto.TeacherHomeworkItem)
	require.True(t, ok)
	require.Len(t, items, 1)
	require.Equal(t, int64(2), items[0].TotalStudents)
	require.Equal(t, int64(2), items[0].Submitted)
	require.Equal(t, int64(1), items[0].Graded)
	require.Equal(t, int64(1), items[0].Pending)

	result, err = svc.List(ctx, actorOf(a.moderator))
	require.NoError(t, err)
	all, ok := result.Items.([]dto.HomeworkResponse)
	require.True(t, ok)
	require.Len(t, all, 2)
}

func TestHomeworkDetailForStudent(t *testing.T) {
	a := newAcademy(t)
	svc := newHomeworks(a)
	ctx := context.Background()

	first := a.homework(t, a.group, "First", 1, utcNow().Add(time.Hour))
	second := a.homework(t, a.group, "Second", 2, utcNow().Add(2*time.Hour))

	detail, err := svc.Detail(ctx, actorOf(a.alice), first.ID)
	require.NoError(t, err)
	require.True(t, detail.CanSubmit)
	require.Nil(t, detail.Submission)

	_, err = svc.Detail(ctx, actorOf(a.alice), second.ID)
	require.ErrorIs(t, err, ErrHomeworkLocked)

	_, err = svc.Detail(ctx, actorOf(a.outsider), first.ID)
	require.ErrorIs(t, err, ErrNotEnrolled)

	a.submit(t, first, a.alice, 0, false)
	detail, err = svc.Detail(ctx, actorOf(a.alice), first.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Submission)
	require.Equal(t, 1, detail.SubmittedCount)

	_, err = svc.Detail(ctx, actorOf(a.alice), 9999)
	require.ErrorIs(t, err, ErrHomeworkNotFound)
}

func TestHomeworkDetailForTeacher(t *testing.T) {
	a := newAcademy(t)
	svc := newHomeworks(a)
	ctx := context.Background()

	homework := a.homework(t, a.group, "Models", 1, utcNow().Add(-time.Hour))
	a.submit(t, homework, a.alice, 75, true)

	detail, err := svc.Detail(ctx, actorOf(a.teacher), homework.ID)
	require.NoError(t, err)
	require.Equal(t, 2, detail.TotalStudents)
	require.Equal(t, 1, detail.SubmittedCount)
	require.Len(t, detail.Submissions, 1)
	require.Len(t, detail.NotSubmitted, 1)
	require.Equal(t, a.bob.ID, detail.NotSubmitted[0].ID)
	require.Equal(t, 75.0, detail.AverageScore)

	_, err = svc.Detail(ctx, actorOf(a.otherTeacher), homework.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Detail(ctx, actorOf(a.moderator), homework.ID)
	require.NoError(t, err)
}
