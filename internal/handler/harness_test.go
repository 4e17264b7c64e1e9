package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/config"
	"github.com/noah-isme/academy-api/internal/database"
	"github.com/noah-isme/academy-api/internal/handler"
	"github.com/noah-isme/academy-api/internal/middleware"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/repository"
	"github.com/noah-isme/academy-api/internal/router"
	"github.com/noah-isme/academy-api/internal/service"
)

const testUserHeader = "X-Test-User"

// testServer is the full HTTP stack over an in-memory sqlite database, with a
// header based stand-in for JWT authentication.
type testServer struct {
	app           *fiber.App
	users         repository.UserRepository
	courses       repository.CourseRepository
	groups        repository.GroupRepository
	homeworks     repository.HomeworkRepository
	submissions   repository.SubmissionRepository
	notifications repository.NotificationRepository
	notifier      service.NotificationService

	admin        models.User
	teacher      models.User
	otherTeacher models.User
	alice        models.User
	bob          models.User
	outsider     models.User
	course       models.Course
	group        models.Group
}

type testOptions struct {
	probes map[string]handler.Pinger
}

func newTestServer(t *testing.T, opts ...func(*testOptions)) *testServer {
	t.Helper()

	options := testOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.ConnectSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", name))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	s := &testServer{
		users:         repository.NewUserRepository(db),
		courses:       repository.NewCourseRepository(db),
		groups:        repository.NewGroupRepository(db),
		homeworks:     repository.NewHomeworkRepository(db),
		submissions:   repository.NewSubmissionRepository(db),
		notifications: repository.NewNotificationRepository(db),
	}
	activities := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activities, logger)
	notificationService := service.NewNotificationService(s.notifications, nil, "", nil, logger)
	s.notifier = notificationService
	lockService := service.NewLockService(s.homeworks)
	progressService := service.NewProgressService(s.users, s.groups, s.courses, s.homeworks, s.submissions, logger)
	deadlineService := service.NewDeadlineService(s.homeworks, s.groups, s.submissions, notificationService, time.Hour, logger)
	dashboardService := service.NewDashboardService(service.DashboardRepositories{
		Users:         s.users,
		Courses:       s.courses,
		Groups:        s.groups,
		Homeworks:     s.homeworks,
		Submissions:   s.submissions,
		Notifications: s.notifications,
	}, progressService, deadlineService, nil, 0, logger)
	homeworkService := service.NewHomeworkService(s.homeworks, s.groups, s.submissions, lockService, notificationService, activityService, validate, time.Hour, logger)
	submissionService := service.NewSubmissionService(s.homeworks, s.submissions, lockService, nil, validate, logger)
	gradingService := service.NewGradingService(s.submissions, notificationService, activityService, validate, logger)
	groupService := service.NewGroupService(s.groups, s.courses, s.users, validate, activityService, logger)
	seedService := service.NewSeedService(s.users, s.courses, s.groups, s.homeworks, true, "letmein", logger)

	cfg := config.Config{AppName: "Academy API", AppEnv: "test", JWTSecret: "test-secret"}

	s.app = fiber.New()
	router.Register(s.app, cfg, router.Dependencies{
		ProgressHandler:     handler.NewProgressHandler(progressService, dashboardService, logger),
		HomeworkHandler:     handler.NewHomeworkHandler(homeworkService, lockService, submissionService, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(submissionService, gradingService, logger),
		DeadlineHandler:     handler.NewDeadlineHandler(deadlineService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, time.Second),
		DashboardHandler:    handler.NewDashboardHandler(dashboardService, logger),
		UserHandler:         handler.NewUserHandler(service.NewUserService(s.users, validate, activityService, logger), logger),
		CourseHandler:       handler.NewCourseHandler(service.NewCourseService(s.courses, validate, activityService, logger), logger),
		GroupHandler:        handler.NewGroupHandler(groupService, logger),
		ActivityHandler:     handler.NewActivityHandler(activityService, logger),
		SeedHandler:         handler.NewSeedHandler(seedService, logger),
		HealthProbes:        options.probes,
		JWTMiddleware:       headerAuth(s.users),
	})

	s.admin = s.user(t, "admin", models.RoleAdmin)
	s.teacher = s.user(t, "teacher", models.RoleTeacher)
	s.otherTeacher = s.user(t, "teacher2", models.RoleTeacher)
	s.alice = s.user(t, "alice", models.RoleStudent)
	s.bob = s.user(t, "bob", models.RoleStudent)
	s.outsider = s.user(t, "outsider", models.RoleStudent)

	ctx := context.Background()
	s.course = models.Course{Name: "Python Backend"}
	require.NoError(t, s.courses.Create(ctx, &s.course))
	s.group = models.Group{Name: "PB-101", CourseID: s.course.ID}
	require.NoError(t, s.groups.Create(ctx, &s.group))
	require.NoError(t, s.groups.AddTeacher(ctx, s.group.ID, s.teacher.ID))
	require.NoError(t, s.groups.AddStudent(ctx, s.group.ID, s.alice.ID))
	require.NoError(t, s.groups.AddStudent(ctx, s.group.ID, s.bob.ID))

	return s
}

func withProbes(probes map[string]handler.Pinger) func(*testOptions) {
	return func(o *testOptions) { o.probes = probes }
}

// headerAuth resolves the caller from the X-Test-User header instead of a token.
func headerAuth(users repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(testUserHeader)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "authorization header missing"})
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "invalid token"})
		}
		user, err := users.GetByID(c.UserContext(), uint(id))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "invalid token"})
		}
		c.Locals(middleware.LocalUserID, user.ID)
		c.Locals(middleware.LocalUserRole, user.Role)
		return c.Next()
	}
}

func (s *testServer) user(t *testing.T, username string, role models.Role) models.User {
	t.Helper()
	user := models.User{Username: username, FirstName: username, Role: role, IsActive: true}
	require.NoError(t, s.users.Create(context.Background(), &user))
	return user
}

func (s *testServer) homework(t *testing.T, title string, sequence int, deadline time.Time) models.Homework {
	t.Helper()
	authorID := s.teacher.ID
	homework := models.Homework{
		Title:       title,
		Deadline:    deadline.UTC(),
		Sequence:    sequence,
		MaxScore:    100,
		GroupID:     s.group.ID,
		CreatedByID: &authorID,
	}
	require.NoError(t, s.homeworks.Create(context.Background(), &homework))
	return homework
}

func (s *testServer) countSubmissions(t *testing.T, homeworkID uint) int64 {
	t.Helper()
	total, err := s.submissions.Count(context.Background(), repository.SubmissionFilter{HomeworkID: &homeworkID})
	require.NoError(t, err)
	return total
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) decode(t *testing.T) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(r.body, &payload), string(r.body))
	return payload
}

func (r response) data(t *testing.T) map[string]interface{} {
	t.Helper()
	data, ok := r.decode(t)["data"].(map[string]interface{})
	require.True(t, ok, string(r.body))
	return data
}

func (s *testServer) do(t *testing.T, method, path string, as *models.User, body interface{}) response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if as != nil {
		req.Header.Set(testUserHeader, strconv.FormatUint(uint64(as.ID), 10))
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) response {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: payload}
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)
	return schema
}

func requireContract(t *testing.T, schemaName string, r response) {
	t.Helper()
	var payload interface{}
	require.NoError(t, json.Unmarshal(r.body, &payload))
	require.NoError(t, compileSchema(t, schemaName).Validate(payload), string(r.body))
}

func apiPath(format string, args ...interface{}) string {
	return "/api/v1" + fmt.Sprintf(format, args...)
}

func newRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}
