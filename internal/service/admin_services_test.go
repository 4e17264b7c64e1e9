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

func TestUserServiceLifecycle(t *testing.T) {
	a := newAcademy(t)
	activity := NewActivityService(a.activities, testLogger())
	svc := NewUserService(a.users, newValidator(), activity, testLogger())
	ctx := context.Background()

	created, err := svc.Create(ctx, actorOf(a.admin), dto.UserCreateRequest{
		Username:  " carol ",
		FirstName: "Carol",
		LastName:  "Danvers",
		Email:     "carol@example.com",
		Role:      "student",
	})
	require.NoError(t, err)
	require.Equal(t, "carol", created.Username)
	require.Equal(t, "Carol Danvers", created.FullName)
	require.Equal(t, string(models.RoleStudent), created.Role)
	require.True(t, created.IsActive)

	_, err = svc.Create(ctx, actorOf(a.admin), dto.UserCreateRequest{Username: "carol", Role: "TEACHER"})
	require.ErrorIs(t, err, ErrUsernameTaken)
	require.ErrorIs(t, err, ErrConflict)

	_, err = svc.Create(ctx, actorOf(a.admin), dto.UserCreateRequest{Username: "dave", Role: "janitor"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, actorOf(a.moderator), dto.UserCreateRequest{Username: "eve", Role: "student"})
	require.ErrorIs(t, err, ErrForbidden)

	phone := "555-0101"
	updated, err := svc.Update(ctx, actorOf(a.admin), created.ID, dto.UserUpdateRequest{Phone: &phone})
	require.NoError(t, err)
	require.Equal(t, phone, updated.Phone)
	require.Equal(t, "carol@example.com", updated.Email)

	toggled, err := svc.ToggleActive(ctx, actorOf(a.admin), created.ID)
	require.NoError(t, err)
	require.False(t, toggled.IsActive)

	_, err = svc.ToggleActive(ctx, actorOf(a.admin), a.admin.ID)
	require.ErrorIs(t, err, ErrValidation)

	blocked, err := svc.List(ctx, actorOf(a.admin), dto.UserListRequest{Status: "blocked"})
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	require.Equal(t, created.ID, blocked[0].ID)

	teachers, err := svc.List(ctx, actorOf(a.admin), dto.UserListRequest{Role: "teacher"})
	require.NoError(t, err)
	require.Len(t, teachers, 2)

	logs, total, err := a.activities.List(ctx, repository.ActivityLogFilter{EntityType: "user"})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, logs, 3)
}

func TestUserServiceAccess(t *testing.T) {
	a := newAcademy(t)
	svc := NewUserService(a.users, newValidator(), NewActivityService(a.activities, testLogger()), testLogger())
	ctx := context.Background()

	me, err := svc.Me(ctx, actorOf(a.alice))
	require.NoError(t, err)
	require.Equal(t, "alice", me.Username)

	_, err = svc.Get(ctx, actorOf(a.alice), a.alice.ID)
	require.NoError(t, err)

	_, err = svc.Get(ctx, actorOf(a.alice), a.bob.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(ctx, actorOf(a.admin), 9999)
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.List(ctx, actorOf(a.teacher), dto.UserListRequest{})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteUserRemovesTheirWork(t *testing.T) {
	a := newAcademy(t)
	svc := NewUserService(a.users, newValidator(), NewActivityService(a.activities, testLogger()), testLogger())
	ctx := context.Background()

	homework := a.homework(t, a.group, "Models", 1, utcNow().Add(time.Hour))
	a.submit(t, homework, a.alice, 80, true)

	require.ErrorIs(t, svc.Delete(ctx, actorOf(a.admin), a.admin.ID), ErrValidation)
	require.NoError(t, svc.Delete(ctx, actorOf(a.admin), a.alice.ID))
	require.ErrorIs(t, svc.Delete(ctx, actorOf(a.admin), a.alice.ID), ErrUserNotFound)

	require.Zero(t, a.countSubmissions(t, homework.ID))
	students, err := a.groups.StudentIDs(ctx, a.group.ID)
	require.NoError(t, err)
	require.Equal(t, []uint{a.bob.ID}, students)

	// deleting the author keeps the homework
	require.NoError(t, svc.Delete(ctx, actorOf(a.admin), a.teacher.ID))
	stored, err := a.homeworks.GetByID(ctx, homework.ID)
	require.NoError(t, err)
	require.Nil(t, stored.CreatedByID)
}

func TestCourseServiceLifecycle(t *testing.T) {
	a := newAcademy(t)
	svc := NewCourseService(a.courses, newValidator(), NewActivityService(a.activities, testLogger()), testLogger())
	ctx := context.Background()

	created, err := svc.Create(ctx, actorOf(a.admin), dto.CourseRequest{
		Name:        "Go Services",
		Description: "<p>Build APIs</p><script>alert(1)</script>",
	})
	require.NoError(t, err)
	require.Equal(t, "<p>Build APIs</p>", created.Description)

	_, err = svc.Create(ctx, actorOf(a.teacher), dto.CourseRequest{Name: "Nope"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(ctx, actorOf(a.admin), dto.CourseRequest{Name: "x"})
	require.ErrorIs(t, err, ErrValidation)

	updated, err := svc.Update(ctx, actorOf(a.admin), created.ID, dto.CourseRequest{Name: "Go Services II"})
	require.NoError(t, err)
	require.Equal(t, "Go Services II", updated.Name)

	courses, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 2)

	existing, err := svc.Get(ctx, a.course.ID)
	require.NoError(t, err)
	require.Len(t, existing.Groups, 1)

	_, err = svc.Get(ctx, 9999)
	require.ErrorIs(t, err, ErrCourseNotFound)
}

func TestDeleteCourseCascades(t *testing.T) {
	a := newAcademy(t)
	svc := NewCourseService(a.courses, newValidator(), NewActivityService(a.activities, testLogger()), testLogger())
	ctx := context.Background()

	homework := a.homework(t, a.group, "Models", 1, utcNow().Add(time.Hour))
	a.submit(t, homework, a.alice, 80, true)

	require.NoError(t, svc.Delete(ctx, actorOf(a.admin), a.course.ID))
	require.ErrorIs(t, svc.Delete(ctx, actorOf(a.admin), a.course.ID), ErrCourseNotFound)

	_, err := a.groups.GetByID(ctx, a.group.ID)
	require.Error(t, err)
	_, err = a.homeworks.GetByID(ctx, homework.ID)
	require.Error(t, err)
	require.Zero(t, a.countSubmissions(t, homework.ID))

	// users survive
	_, err = a.users.GetByID(ctx, a.alice.ID)
	require.NoError(t, err)
}

func TestGroupServiceMembership(t *testing.T) {
	a := newAcademy(t)
	svc := NewGroupService(a.groups, a.courses, a.users, newValidator(), NewActivityService(a.activities, testLogger()), testLogger())
	ctx := context.Background()

	created, err := svc.Create(ctx, actorOf(a.admin), dto.GroupRequest{Name: "PB-102", CourseID: a.course.ID})
	require.NoError(t, err)

	_, err = svc.Create(ctx, actorOf(a.admin), dto.GroupRequest{Name: "PB-103", CourseID: 9999})
	require.ErrorIs(t, err, ErrCourseNotFound)

	_, err = svc.AddStudent(ctx, actorOf(a.admin), created.ID, dto.MembershipRequest{UserID: a.teacher.ID})
	require.ErrorIs(t, err, ErrInvalidMemberRole)

	_, err = svc.AddTeacher(ctx, actorOf(a.admin), created.ID, dto.MembershipRequest{UserID: a.alice.ID})
	require.ErrorIs(t, err, ErrInvalidMemberRole)

	_, err = svc.AddStudent(ctx, actorOf(a.admin), created.ID, dto.MembershipRequest{UserID: 9999})
	require.ErrorIs(t, err, ErrUserNotFound)

	group, err := svc.AddTeacher(ctx, actorOf(a.admin), created.ID, dto.MembershipRequest{UserID: a.otherTeacher.ID})
	require.NoError(t, err)
	require.Len(t, group.Teachers, 1)

	group, err = svc.AddStudent(ctx, actorOf(a.admin), created.ID, dto.MembershipRequest{UserID: a.outsider.ID})
	require.NoError(t, err)
	require.Len(t, group.Students, 1)

	group, err = svc.RemoveStudent(ctx, actorOf(a.admin), created.ID, a.outsider.ID)
	require.NoError(t, err)
	require.Empty(t, group.Students)

	_, err = svc.AddStudent(ctx, actorOf(a.teacher), a.group.ID, dto.MembershipRequest{UserID: a.outsider.ID})
	require.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.Delete(ctx, actorOf(a.admin), created.ID))
	require.ErrorIs(t, svc.Delete(ctx, actorOf(a.admin), created.ID), ErrGroupNotFound)
}

func TestGroupServiceVisibility(t *testing.T) {
	a := newAcademy(t)
	svc := NewGroupService(a.groups, a.courses, a.users, newValidator(), NewActivityService(a.activities, testLogger()), testLogger())
	ctx := context.Background()

	other := a.newGroup(t, "PB-102", a.otherTeacher, a.outsider)

	mine, err := svc.List(ctx, actorOf(a.teacher), nil)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, a.group.ID, mine[0].ID)

	enrolled, err := svc.List(ctx, actorOf(a.outsider), nil)
	require.NoError(t, err)
	require.Len(t, enrolled, 1)
	require.Equal(t, other.ID, enrolled[0].ID)

	all, err := svc.List(ctx, actorOf(a.moderator), &a.course.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = svc.Get(ctx, actorOf(a.teacher), other.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(ctx, actorOf(a.alice), other.ID)
	require.ErrorIs(t, err, ErrNotEnrolled)

	group, err := svc.Get(ctx, actorOf(a.alice), a.group.ID)
	require.NoError(t, err)
	require.Len(t, group.Students, 2)

	_, err = svc.Get(ctx, actorOf(a.admin), 9999)
	require.ErrorIs(t, err, ErrGroupNotFound)
}
