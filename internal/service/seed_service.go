package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = fmt.Errorf("%w: invalid seed token", ErrAuthorization)
)

// SeedService creates the demo academy: staff, students, a course with two
// groups and a short homework sequence per group.
type SeedService interface {
	Seed(ctx context.Context) (dto.SeedReport, error)
	SeedWithToken(ctx context.Context, token string) (dto.SeedReport, error)
}

type seedService struct {
	users     repository.UserRepository
	courses   repository.CourseRepository
	groups    repository.GroupRepository
	homeworks repository.HomeworkRepository
	enabled   bool
	token     string
	logger    zerolog.Logger
	now       func() time.Time
}

type seedUser struct {
	username  string
	firstName string
	lastName  string
	role      models.Role
}

var demoUsers = []seedUser{
	{username: "admin", firstName: "Ada", lastName: "Admin", role: models.RoleAdmin},
	{username: "moderator", firstName: "Mo", lastName: "Derator", role: models.RoleModerator},
	{username: "teacher", firstName: "Tina", lastName: "Teacher", role: models.RoleTeacher},
	{username: "teacher2", firstName: "Tom", lastName: "Tutor", role: models.RoleTeacher},
	{username: "student", firstName: "Sam", lastName: "Student", role: models.RoleStudent},
	{username: "student2", firstName: "Sara", lastName: "Scholar", role: models.RoleStudent},
	{username: "student3", firstName: "Sid", lastName: "Learner", role: models.RoleStudent},
}

var demoHomeworks = []struct {
	title       string
	description string
	dueIn       time.Duration
}{
	{title: "Models", description: "Describe the data model of a blog.", dueIn: 48 * time.Hour},
	{title: "Queries", description: "Write the five queries from the lesson.", dueIn: 96 * time.Hour},
	{title: "Views", description: "Render the post list and detail pages.", dueIn: 144 * time.Hour},
}

// NewSeedService constructs a seeding service.
func NewSeedService(users repository.UserRepository, courses repository.CourseRepository, groups repository.GroupRepository, homeworks repository.HomeworkRepository, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		users:     users,
		courses:   courses,
		groups:    groups,
		homeworks: homeworks,
		enabled:   enabled,
		token:     token,
		logger:    logger.With().Str("component", "seed_service").Logger(),
		now:       systemNow,
	}
}

func (s *seedService) SeedWithToken(ctx context.Context, token string) (dto.SeedReport, error) {
	if !s.enabled {
		return dto.SeedReport{}, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return dto.SeedReport{}, ErrSeedUnauthorized
	}
	return s.Seed(ctx)
}

// Seed is idempotent: existing users, the course, its groups and homeworks
// with the same title are reused.
func (s *seedService) Seed(ctx context.Context) (dto.SeedReport, error) {
	if !s.enabled {
		return dto.SeedReport{}, ErrSeedDisabled
	}

	var report dto.SeedReport
	byUsername := make(map[string]models.User, len(demoUsers))
	for _, item := range demoUsers {
		user, created, err := s.ensureUser(ctx, item)
		if err != nil {
			return report, err
		}
		if created {
			report.Users++
		}
		byUsername[item.username] = user
	}

	course, err := s.courses.GetByName(ctx, "Python Backend")
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		course = models.Course{Name: "Python Backend", Description: "Web backends with Python and PostgreSQL."}
		if err := s.courses.Create(ctx, &course); err != nil {
			return report, err
		}
		report.Courses++
	case err != nil:
		return report, err
	}

	layout := []struct {
		name     string
		teacher  string
		students []string
	}{
		{name: "PB-101", teacher: "teacher", students: []string{"student", "student2"}},
		{name: "PB-102", teacher: "teacher2", students: []string{"student3"}},
	}

	for _, entry := range layout {
		group, created, err := s.ensureGroup(ctx, course, entry.name)
		if err != nil {
			return report, err
		}
		if created {
			report.Groups++
		}

		teacher := byUsername[entry.teacher]
		if !group.HasTeacher(teacher.ID) {
			if err := s.groups.AddTeacher(ctx, group.ID, teacher.ID); err != nil {
				return report, err
			}
		}
		for _, username := range entry.students {
			student := byUsername[username]
			if group.HasStudent(student.ID) {
				continue
			}
			if err := s.groups.AddStudent(ctx, group.ID, student.ID); err != nil {
				return report, err
			}
		}

		added, err := s.ensureHomeworks(ctx, group, teacher)
		if err != nil {
			return report, err
		}
		report.Homeworks += added
	}

	s.logger.Info().
		Int("users", report.Users).
		Int("courses", report.Courses).
		Int("groups", report.Groups).
		Int("homeworks", report.Homeworks).
		Msg("demo data seeded")
	return report, nil
}

func (s *seedService) ensureUser(ctx context.Context, item seedUser) (models.User, bool, error) {
	user, err := s.users.GetByUsername(ctx, item.username)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, false, err
	}

	user = models.User{
		Username:  item.username,
		FirstName: item.firstName,
		LastName:  item.lastName,
		Email:     item.username + "@example.com",
		Role:      item.role,
		IsActive:  true,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		return models.User{}, false, err
	}
	return user, true, nil
}

func (s *seedService) ensureGroup(ctx context.Context, course models.Course, name string) (models.Group, bool, error) {
	for _, existing := range course.Groups {
		if existing.Name == name {
			group, err := s.groups.GetByID(ctx, existing.ID)
			return group, false, err
		}
	}

	group := models.Group{Name: name, CourseID: course.ID}
	if err := s.groups.Create(ctx, &group); err != nil {
		return models.Group{}, false, err
	}
	return group, true, nil
}

func (s *seedService) ensureHomeworks(ctx context.Context, group models.Group, author models.User) (int, error) {
	groupID := group.ID
	existing, err := s.homeworks.List(ctx, repository.HomeworkFilter{GroupID: &groupID})
	if err != nil {
		return 0, err
	}
	titles := make(map[string]bool, len(existing))
	for _, homework := range existing {
		titles[homework.Title] = true
	}

	created := 0
	now := s.now()
	for index, item := range demoHomeworks {
		if titles[item.title] {
			continue
		}
		authorID := author.ID
		homework := models.Homework{
			Title:       item.title,
			Description: item.description,
			Deadline:    now.Add(item.dueIn),
			MaxScore:    100,
			Sequence:    index + 1,
			GroupID:     group.ID,
			CreatedByID: &authorID,
		}
		if err := s.homeworks.Create(ctx, &homework); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}
