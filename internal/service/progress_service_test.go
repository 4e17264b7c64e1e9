package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newProgress(a *academy) ProgressService {
	return NewProgressService(a.users, a.groups, a.courses, a.homeworks, a.submissions, testLogger())
}

func TestStudentProgressIsZeroWithoutHomeworks(t *testing.T) {
	a := newAcademy(t)
	svc := newProgress(a)

	progress, err := svc.StudentProgress(context.Background(), a.outsider.ID)
	require.NoError(t, err)
	require.Zero(t, progress)

	progress, err = svc.StudentProgress(context.Background(), a.alice.ID)
	require.NoError(t, err)
	require.Zero(t, progress)
}

func TestStudentProgressCountsMissingHomeworksAsZero(t *testing.T) {
	a := newAcademy(t)
	svc := newProgress(a)
	future := utcNow().Add(48 * time.Hour)

	h1 := a.homework(t, a.group, "H1", 1, future)
	a.homework(t, a.group, "H2", 2, future)
	a.homework(t, a.group, "H3", 3, future)
	a.submit(t, h1, a.alice, 90, true)

	progress, err := svc.StudentProgress(context.Background(), a.alice.ID)
	require.NoError(t, err)
	require.Equal(t, 30.0, progress)

	average, err := svc.GroupAverage(context.Background(), a.group.ID)
	require.NoError(t, err)
	require.Equal(t, 15.0, average)
}

func TestStudentProgressSpansEveryGroup(t *testing.T) {
	a := newAcademy(t)
	svc := newProgress(a)
	future := utcNow().Add(48 * time.Hour)

	second := a.newGroup(t, "PB-102", a.otherTeacher, a.alice)
	h1 := a.homework(t, a.group, "H1", 1, future)
	h2 := a.homework(t, second, "Other", 1, future)
	a.submit(t, h1, a.alice, 100, true)
	a.submit(t, h2, a.alice, 50, true)

	progress, err := svc.StudentProgress(context.Background(), a.alice.ID)
	require.NoError(t, err)
	require.Equal(t, 75.0, progress)

	// the second group's average re-derives alice's cross-group progress
	average, err := svc.GroupAverage(context.Background(), second.ID)
	require.NoError(t, err)
	require.Equal(t, 75.0, average)
}

func TestGroupAverageEmptyGroup(t *testing.T) {
	a := newAcademy(t)
	svc := newProgress(a)

	empty := a.newGroup(t, "Empty", a.teacher)
	a.homework(t, empty, "Lonely", 1, utcNow().Add(time.Hour))

	average, err := svc.GroupAverage(context.Background(), empty.ID)
	require.NoError(t, err)
	require.Zero(t, average)
}

func TestCourseAverageUsesGradedSubmissionsOnly(t *testing.T) {
	a := newAcademy(t)
	svc := newProgress(a)
	future := utcNow().Add(48 * time.Hour)

	h1 := a.homework(t, a.group, "H1", 1, future)
	a.submit(t, h1, a.alice, 80, true)
	a.submit(t, h1, a.bob, 0, false)

	average, err := svc.CourseAverage(context.Background(), a.course.ID)
	require.NoError(t, err)
	require.Equal(t, 80.0, average)
}

func TestForStudentPermissions(t *testing.T) {
	a := newAcademy(t)
	svc := newProgress(a)
	ctx := context.Background()

	_, err := svc.ForStudent(ctx, actorOf(a.alice), a.alice.ID)
	require.NoError(t, err)

	_, err = svc.ForStudent(ctx, actorOf(a.alice), a.bob.ID)
	require.ErrorIs(t, err, ErrAuthorization)

	_, err = svc.ForStudent(ctx, actorOf(a.teacher), a.bob.ID)
	require.NoError(t, err)

	_, err = svc.ForStudent(ctx, actorOf(a.otherTeacher), a.bob.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.ForStudent(ctx, actorOf(a.moderator), a.bob.ID)
	require.NoError(t, err)

	_, err = svc.ForStudent(ctx, actorOf(a.admin), 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestForGroupAndCoursePermissions(t *testing.T) {
	a := newAcademy(t)
	svc := newProgress(a)
	ctx := context.Background()

	_, err := svc.ForGroup(ctx, actorOf(a.teacher), a.group.ID)
	require.NoError(t, err)

	_, err = svc.ForGroup(ctx, actorOf(a.otherTeacher), a.group.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.ForGroup(ctx, actorOf(a.alice), a.group.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.ForGroup(ctx, actorOf(a.admin), 9999)
	require.ErrorIs(t, err, ErrGroupNotFound)

	_, err = svc.ForCourse(ctx, actorOf(a.teacher), a.course.ID)
	require.ErrorIs(t, err, ErrForbidden)

	result, err := svc.ForCourse(ctx, actorOf(a.moderator), a.course.ID)
	require.NoError(t, err)
	require.Equal(t, a.course.ID, result.CourseID)
}
