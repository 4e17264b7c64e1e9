package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/policy"
	"github.com/noah-isme/academy-api/internal/repository"
)

const (
	adminDashboardCacheKey = "dashboard:admin"
	upcomingWindow         = 72 * time.Hour
)

// DashboardService builds the role-specific landing pages and analytics.
type DashboardService interface {
	Student(ctx context.Context, actor policy.Actor) (dto.StudentDashboardResponse, error)
	Teacher(ctx context.Context, actor policy.Actor) (dto.TeacherDashboardResponse, error)
	Admin(ctx context.Context, actor policy.Actor) (dto.AdminDashboardResponse, error)
	GroupStats(ctx context.Context, actor policy.Actor, groupID uint) (dto.GroupStatsResponse, error)
	Analytics(ctx context.Context, actor policy.Actor) (dto.AnalyticsResponse, error)
}

// DashboardRepositories bundles the read models the dashboards aggregate.
type DashboardRepositories struct {
	Users         repository.UserRepository
	Courses       repository.CourseRepository
	Groups        repository.GroupRepository
	Homeworks     repository.HomeworkRepository
	Submissions   repository.SubmissionRepository
	Notifications repository.NotificationRepository
}

type dashboardService struct {
	repos     DashboardRepositories
	progress  ProgressCalculator
	deadlines DeadlineService
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewDashboardService constructs the dashboard service. A nil cache or a zero
// ttl disables admin dashboard caching.
func NewDashboardService(repos DashboardRepositories, progress ProgressCalculator, deadlines DeadlineService, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) DashboardService {
	return &dashboardService{
		repos:     repos,
		progress:  progress,
		deadlines: deadlines,
		cache:     cache,
		cacheTTL:  ttl,
		logger:    logger.With().Str("component", "dashboard_service").Logger(),
		now:       systemNow,
	}
}

// Student runs the per-student auto-grade sweep before reading, so expired
// homeworks already show up as submitted with a zero score.
func (s *dashboardService) Student(ctx context.Context, actor policy.Actor) (dto.StudentDashboardResponse, error) {
	if !policy.Allow(actor, policy.ViewStudentBoard, policy.Target{}) {
		return dto.StudentDashboardResponse{}, ErrForbidden
	}
	studentID := actor.ID

	autoGraded := 0
	if s.deadlines != nil {
		count, err := s.deadlines.SweepStudent(ctx, studentID)
		if err != nil {
			s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("student auto-grade sweep failed")
		}
		autoGraded = count
	}

	groups, err := s.repos.Groups.List(ctx, repository.GroupFilter{StudentID: &studentID})
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}
	groupLites := make([]dto.GroupLite, 0, len(groups))
	for _, group := range groups {
		groupLites = append(groupLites, dto.NewGroupLite(group))
	}

	recent, err := s.repos.Homeworks.List(ctx, repository.HomeworkFilter{StudentID: &studentID, Newest: true, Limit: 10})
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}

	now := s.now()
	horizon := now.Add(upcomingWindow)
	upcoming, err := s.repos.Homeworks.List(ctx, repository.HomeworkFilter{
		StudentID:     &studentID,
		UnsubmittedBy: &studentID,
		DeadlineAfter: &now,
		DeadlineUntil: &horizon,
		ByDeadline:    true,
		Limit:         5,
	})
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}

	total, err := s.repos.Homeworks.Count(ctx, repository.HomeworkFilter{StudentID: &studentID})
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}
	submitted, err := s.repos.Submissions.Count(ctx, repository.SubmissionFilter{StudentID: &studentID})
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}
	graded := true
	average, err := s.repos.Submissions.AverageScore(ctx, repository.SubmissionFilter{StudentID: &studentID, IsGraded: &graded})
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}
	progress, err := s.progress.StudentProgress(ctx, studentID)
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}
	unread, err := s.repos.Notifications.ListByUser(ctx, studentID, true, 5, 0)
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}

	return dto.StudentDashboardResponse{
		Groups:              groupLites,
		RecentHomeworks:     dto.NewHomeworkResponses(recent),
		UpcomingDeadlines:   dto.NewHomeworkResponses(upcoming),
		TotalHomeworks:      total,
		SubmittedHomeworks:  submitted,
		AverageScore:        round1(average),
		Progress:            progress,
		UnreadNotifications: dto.NewNotificationResponseSlice(unread),
		AutoGraded:          autoGraded,
		GeneratedAt:         now,
	}, nil
}

// Teacher summarises the teacher's groups. Administrators see every group.
func (s *dashboardService) Teacher(ctx context.Context, actor policy.Actor) (dto.TeacherDashboardResponse, error) {
	if !policy.Allow(actor, policy.ViewTeacherBoard, policy.Target{}) {
		return dto.TeacherDashboardResponse{}, ErrForbidden
	}

	groupFilter := repository.GroupFilter{}
	submissionFilter := repository.SubmissionFilter{Limit: 10}
	if actor.Role == models.RoleTeacher {
		groupFilter.TeacherID = &actor.ID
		submissionFilter.TeacherID = &actor.ID
	}

	groups, err := s.repos.Groups.List(ctx, groupFilter)
	if err != nil {
		return dto.TeacherDashboardResponse{}, err
	}

	response := dto.TeacherDashboardResponse{
		Groups:      make([]dto.TeacherGroupStats, 0, len(groups)),
		TotalGroups: len(groups),
		GeneratedAt: s.now(),
	}
	for _, group := range groups {
		stats, err := s.teacherGroupStats(ctx, group)
		if err != nil {
			return dto.TeacherDashboardResponse{}, err
		}
		response.Groups = append(response.Groups, stats)
		response.TotalStudents += stats.StudentCount
		response.TotalHomeworks += stats.HomeworkCount
		response.TotalPending += stats.PendingCount
	}

	pending := false
	submissionFilter.IsGraded = &pending
	recent, err := s.repos.Submissions.List(ctx, submissionFilter)
	if err != nil {
		return dto.TeacherDashboardResponse{}, err
	}
	response.RecentPending = dto.NewSubmissionResponses(recent)

	return response, nil
}

func (s *dashboardService) teacherGroupStats(ctx context.Context, group models.Group) (dto.TeacherGroupStats, error) {
	groupID := group.ID
	homeworks, err := s.repos.Homeworks.Count(ctx, repository.HomeworkFilter{GroupID: &groupID})
	if err != nil {
		return dto.TeacherGroupStats{}, err
	}
	graded := true
	average, err := s.repos.Submissions.AverageScore(ctx, repository.SubmissionFilter{GroupID: &groupID, IsGraded: &graded})
	if err != nil {
		return dto.TeacherGroupStats{}, err
	}
	notGraded := false
	pending, err := s.repos.Submissions.Count(ctx, repository.SubmissionFilter{GroupID: &groupID, IsGraded: &notGraded})
	if err != nil {
		return dto.TeacherGroupStats{}, err
	}
	groupAverage, err := s.progress.GroupAverage(ctx, groupID)
	if err != nil {
		return dto.TeacherGroupStats{}, err
	}

	return dto.TeacherGroupStats{
		Group:         dto.NewGroupLite(group),
		StudentCount:  int64(len(group.Students)),
		HomeworkCount: homeworks,
		AverageScore:  round1(average),
		PendingCount:  pending,
		GroupAverage:  groupAverage,
	}, nil
}

// Admin returns system-wide statistics, served from redis when a fresh copy exists.
func (s *dashboardService) Admin(ctx context.Context, actor policy.Actor) (dto.AdminDashboardResponse, error) {
	if !policy.Allow(actor, policy.ViewAdminDashboard, policy.Target{}) {
		return dto.AdminDashboardResponse{}, ErrForbidden
	}

	tracer := otel.Tracer("github.com/noah-isme/academy-api/internal/service/dashboard")
	ctx, span := tracer.Start(ctx, "dashboard.admin")
	span.SetAttributes(attribute.String("dashboard.cache_key", adminDashboardCacheKey))
	defer span.End()

	if cached, ok := s.cachedAdmin(ctx); ok {
		span.SetAttributes(attribute.Bool("dashboard.cache_hit", true))
		cached.IsModerator = actor.Role == models.RoleModerator
		return cached, nil
	}

	response, err := s.buildAdmin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build_admin_dashboard_failed")
		return dto.AdminDashboardResponse{}, err
	}
	s.storeAdmin(ctx, response)

	response.IsModerator = actor.Role == models.RoleModerator
	return response, nil
}

func (s *dashboardService) buildAdmin(ctx context.Context) (dto.AdminDashboardResponse, error) {
	active := true
	studentRole := models.RoleStudent
	teacherRole := models.RoleTeacher

	students, err := s.repos.Users.Count(ctx, repository.UserFilter{Role: &studentRole, IsActive: &active})
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}
	teachers, err := s.repos.Users.Count(ctx, repository.UserFilter{Role: &teacherRole, IsActive: &active})
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}
	groupCount, err := s.repos.Groups.Count(ctx)
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}
	graded := true
	average, err := s.repos.Submissions.AverageScore(ctx, repository.SubmissionFilter{IsGraded: &graded})
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}

	courses, err := s.repos.Courses.List(ctx)
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}
	courseStats := make([]dto.CourseStats, 0, len(courses))
	for _, course := range courses {
		groupIDs := make([]uint, 0, len(course.Groups))
		for _, group := range course.Groups {
			groupIDs = append(groupIDs, group.ID)
		}
		enrolled, err := s.repos.Groups.CountStudents(ctx, groupIDs)
		if err != nil {
			return dto.AdminDashboardResponse{}, err
		}
		courseAverage, err := s.progress.CourseAverage(ctx, course.ID)
		if err != nil {
			return dto.AdminDashboardResponse{}, err
		}
		courseStats = append(courseStats, dto.CourseStats{
			ID:            course.ID,
			Name:          course.Name,
			GroupCount:    len(course.Groups),
			StudentCount:  enrolled,
			CourseAverage: courseAverage,
		})
	}

	recentUsers, err := s.repos.Users.List(ctx, repository.UserFilter{Recent: true, Limit: 5})
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}
	recentSubmissions, err := s.repos.Submissions.List(ctx, repository.SubmissionFilter{Limit: 5})
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}

	return dto.AdminDashboardResponse{
		TotalStudents:     students,
		TotalTeachers:     teachers,
		TotalCourses:      int64(len(courses)),
		TotalGroups:       groupCount,
		AverageScore:      round1(average),
		Courses:           courseStats,
		RecentUsers:       dto.NewUserResponses(recentUsers),
		RecentSubmissions: dto.NewSubmissionResponses(recentSubmissions),
		GeneratedAt:       s.now(),
	}, nil
}

func (s *dashboardService) cachedAdmin(ctx context.Context) (dto.AdminDashboardResponse, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return dto.AdminDashboardResponse{}, false
	}

	cached, err := s.cache.Get(ctx, adminDashboardCacheKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read admin dashboard cache")
		}
		return dto.AdminDashboardResponse{}, false
	}

	var response dto.AdminDashboardResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		s.logger.Warn().Err(err).Msg("discarding malformed admin dashboard cache")
		return dto.AdminDashboardResponse{}, false
	}
	return response, true
}

func (s *dashboardService) storeAdmin(ctx context.Context, response dto.AdminDashboardResponse) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, adminDashboardCacheKey, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store admin dashboard cache")
	}
}

// GroupStats lists per-student completion for a group. The group mean is the
// mean of the students' graded averages.
func (s *dashboardService) GroupStats(ctx context.Context, actor policy.Actor, groupID uint) (dto.GroupStatsResponse, error) {
	group, err := s.repos.Groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GroupStatsResponse{}, ErrGroupNotFound
		}
		return dto.GroupStatsResponse{}, err
	}
	if !policy.Allow(actor, policy.ViewGroupStats, policy.Target{GroupTeacher: group.HasTeacher(actor.ID)}) {
		return dto.GroupStatsResponse{}, ErrForbidden
	}

	total, err := s.repos.Homeworks.Count(ctx, repository.HomeworkFilter{GroupID: &groupID})
	if err != nil {
		return dto.GroupStatsResponse{}, err
	}

	graded := true
	rows := make([]dto.StudentGroupStats, 0, len(group.Students))
	var sum float64
	for _, student := range group.Students {
		studentID := student.ID
		submitted, err := s.repos.Submissions.Count(ctx, repository.SubmissionFilter{GroupID: &groupID, StudentID: &studentID})
		if err != nil {
			return dto.GroupStatsResponse{}, err
		}
		average, err := s.repos.Submissions.AverageScore(ctx, repository.SubmissionFilter{GroupID: &groupID, StudentID: &studentID, IsGraded: &graded})
		if err != nil {
			return dto.GroupStatsResponse{}, err
		}

		completion := 0.0
		if total > 0 {
			completion = round1(float64(submitted) / float64(total) * 100)
		}
		row := dto.StudentGroupStats{
			Student:        dto.NewUserLite(student),
			Submitted:      submitted,
			TotalHomeworks: total,
			AverageScore:   round1(average),
			Completion:     completion,
		}
		sum += row.AverageScore
		rows = append(rows, row)
	}

	mean := 0.0
	if len(rows) > 0 {
		mean = round1(sum / float64(len(rows)))
	}

	return dto.GroupStatsResponse{
		Group:        dto.NewGroupLite(group),
		Students:     rows,
		GroupAverage: mean,
	}, nil
}

func (s *dashboardService) Analytics(ctx context.Context, actor policy.Actor) (dto.AnalyticsResponse, error) {
	response := dto.AnalyticsResponse{Role: string(actor.Role)}
	graded := true

	switch actor.Role {
	case models.RoleStudent:
		studentID := actor.ID
		average, err := s.repos.Submissions.AverageScore(ctx, repository.SubmissionFilter{StudentID: &studentID, IsGraded: &graded})
		if err != nil {
			return dto.AnalyticsResponse{}, err
		}
		progress, err := s.progress.StudentProgress(ctx, studentID)
		if err != nil {
			return dto.AnalyticsResponse{}, err
		}
		total, err := s.repos.Submissions.Count(ctx, repository.SubmissionFilter{StudentID: &studentID})
		if err != nil {
			return dto.AnalyticsResponse{}, err
		}
		gradedCount, err := s.repos.Submissions.Count(ctx, repository.SubmissionFilter{StudentID: &studentID, IsGraded: &graded})
		if err != nil {
			return dto.AnalyticsResponse{}, err
		}
		late, err := s.repos.Submissions.CountLate(ctx, studentID)
		if err != nil {
			return dto.AnalyticsResponse{}, err
		}
		response.Student = &dto.StudentAnalytics{
			AverageScore:      round1(average),
			Progress:          progress,
			TotalSubmissions:  total,
			GradedSubmissions: gradedCount,
			LateSubmissions:   late,
		}
	case models.RoleTeacher:
		teacherID := actor.ID
		groups, err := s.repos.Groups.List(ctx, repository.GroupFilter{TeacherID: &teacherID})
		if err != nil {
			return dto.AnalyticsResponse{}, err
		}
		items := make([]dto.GroupAverageItem, 0, len(groups))
		for _, group := range groups {
			groupID := group.ID
			average, err := s.repos.Submissions.AverageScore(ctx, repository.SubmissionFilter{GroupID: &groupID, IsGraded: &graded})
			if err != nil {
				return dto.AnalyticsResponse{}, err
			}
			groupAverage, err := s.progress.GroupAverage(ctx, groupID)
			if err != nil {
				return dto.AnalyticsResponse{}, err
			}
			items = append(items, dto.GroupAverageItem{
				Group:        dto.NewGroupLite(group),
				AverageScore: round1(average),
				GroupAverage: groupAverage,
			})
		}
		response.Teacher = &dto.TeacherAnalytics{Groups: items}
	case models.RoleAdmin, models.RoleModerator:
		studentRole := models.RoleStudent
		teacherRole := models.RoleTeacher
		students, err := s.repos.Users.Count(ctx, repository.UserFilter{Role: &studentRole})
		if err != nil {
			return dto.AnalyticsResponse{}, err
		}
		teachers, err := s.repos.Users.Count(ctx, repository.UserFilter{Role: &teacherRole})
		if err != nil {
			return dto.AnalyticsResponse{}, err
		}
		homeworks, err := s.repos.Homeworks.Count(ctx, repository.HomeworkFilter{})
		if err != nil {
			return dto.AnalyticsResponse{}, err
		}
		submissions, err := s.repos.Submissions.Count(ctx, repository.SubmissionFilter{})
		if err != nil {
			return dto.AnalyticsResponse{}, err
		}
		gradedCount, err := s.repos.Submissions.Count(ctx, repository.SubmissionFilter{IsGraded: &graded})
		if err != nil {
			return dto.AnalyticsResponse{}, err
		}
		average, err := s.repos.Submissions.AverageScore(ctx, repository.SubmissionFilter{IsGraded: &graded})
		if err != nil {
			return dto.AnalyticsResponse{}, err
		}
		response.Admin = &dto.AdminAnalytics{
			TotalStudents:     students,
			TotalTeachers:     teachers,
			TotalHomeworks:    homeworks,
			TotalSubmissions:  submissions,
			GradedSubmissions: gradedCount,
			AverageScore:      round1(average),
		}
	default:
		return dto.AnalyticsResponse{}, ErrForbidden
	}

	return response, nil
}
