package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/academy-api/internal/database"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/policy"
	"github.com/noah-isme/academy-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.ConnectSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", name))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// academy is a small school: one course, one group taught by teacher with
// students alice and bob, plus an outsider teacher and student.
type academy struct {
	db            *gorm.DB
	admin         models.User
	moderator     models.User
	teacher       models.User
	otherTeacher  models.User
	alice         models.User
	bob           models.User
	outsider      models.User
	course        models.Course
	group         models.Group
	users         repository.UserRepository
	courses       repository.CourseRepository
	groups        repository.GroupRepository
	homeworks     repository.HomeworkRepository
	submissions   repository.SubmissionRepository
	notifications repository.NotificationRepository
	activities    repository.ActivityLogRepository
}

func newAcademy(t *testing.T) *academy {
	t.Helper()
	db := newTestDB(t)

	a := &academy{
		db:            db,
		users:         repository.NewUserRepository(db),
		courses:       repository.NewCourseRepository(db),
		groups:        repository.NewGroupRepository(db),
		homeworks:     repository.NewHomeworkRepository(db),
		submissions:   repository.NewSubmissionRepository(db),
		notifications: repository.NewNotificationRepository(db),
		activities:    repository.NewActivityLogRepository(db),
	}

	a.admin = a.user(t, "admin", models.RoleAdmin)
	a.moderator = a.user(t, "moderator", models.RoleModerator)
	a.teacher = a.user(t, "teacher", models.RoleTeacher)
	a.otherTeacher = a.user(t, "teacher2", models.RoleTeacher)
	a.alice = a.user(t, "alice", models.RoleStudent)
	a.bob = a.user(t, "bob", models.RoleStudent)
	a.outsider = a.user(t, "outsider", models.RoleStudent)

	a.course = models.Course{Name: "Python Backend"}
	require.NoError(t, a.courses.Create(context.Background(), &a.course))
	a.group = a.newGroup(t, "PB-101", a.teacher, a.alice, a.bob)

	return a
}

func (a *academy) user(t *testing.T, username string, role models.Role) models.User {
	t.Helper()
	user := models.User{Username: username, FirstName: strings.ToUpper(username[:1]) + username[1:], Role: role, IsActive: true}
	require.NoError(t, a.users.Create(context.Background(), &user))
	return user
}

func (a *academy) newGroup(t *testing.T, name string, teacher models.User, students ...models.User) models.Group {
	t.Helper()
	ctx := context.Background()
	group := models.Group{Name: name, CourseID: a.course.ID}
	require.NoError(t, a.groups.Create(ctx, &group))
	require.NoError(t, a.groups.AddTeacher(ctx, group.ID, teacher.ID))
	for _, student := range students {
		require.NoError(t, a.groups.AddStudent(ctx, group.ID, student.ID))
	}
	loaded, err := a.groups.GetByID(ctx, group.ID)
	require.NoError(t, err)
	return loaded
}

func (a *academy) homework(t *testing.T, group models.Group, title string, sequence int, deadline time.Time) models.Homework {
	t.Helper()
	authorID := a.teacher.ID
	homework := models.Homework{
		Title:       title,
		Deadline:    deadline.UTC(),
		Sequence:    sequence,
		MaxScore:    100,
		GroupID:     group.ID,
		CreatedByID: &authorID,
	}
	require.NoError(t, a.homeworks.Create(context.Background(), &homework))
	return homework
}

func (a *academy) submit(t *testing.T, homework models.Homework, student models.User, score int, graded bool) models.Submission {
	t.Helper()
	submission := models.Submission{
		HomeworkID:   homework.ID,
		StudentID:    student.ID,
		Content:      "answer",
		ScorePercent: score,
		IsGraded:     graded,
		SubmittedAt:  time.Now().UTC(),
	}
	created, err := a.submissions.CreateIfAbsent(context.Background(), &submission)
	require.NoError(t, err)
	require.True(t, created)
	return submission
}

func (a *academy) countSubmissions(t *testing.T, homeworkID uint) int64 {
	t.Helper()
	total, err := a.submissions.Count(context.Background(), repository.SubmissionFilter{HomeworkID: &homeworkID})
	require.NoError(t, err)
	return total
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func actorOf(user models.User) policy.Actor {
	return policy.Actor{ID: user.ID, Role: user.Role}
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func intPointer(v int) *int {
	return &v
}

// recordingNotifier persists like the real notifier but remembers deliveries.
type recordingNotifier struct {
	NotificationService
	mu        sync.Mutex
	delivered []models.Notification
}

func newRecordingNotifier(a *academy) *recordingNotifier {
	return &recordingNotifier{NotificationService: NewNotificationService(a.notifications, nil, "", nil, testLogger())}
}

func (n *recordingNotifier) Deliver(ctx context.Context, notification models.Notification) {
	n.mu.Lock()
	n.delivered = append(n.delivered, notification)
	n.mu.Unlock()
	n.NotificationService.Deliver(ctx, notification)
}

type stubUploader struct {
	names []string
	err   error
}

func (u *stubUploader) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.names = append(u.names, name)
	return "https://files.example.com/" + name, nil
}

func newTestFileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(int64(len(content))+1024))
	files := req.MultipartForm.File["file"]
	require.Len(t, files, 1)
	return files[0]
}
