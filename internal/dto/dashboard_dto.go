package dto

import "time"

// StudentProgressResponse carries a student's overall progress percentage.
type StudentProgressResponse struct {
	StudentID uint    `json:"student_id"`
	Progress  float64 `json:"progress"`
}

// GroupProgressResponse carries the mean progress of a group's students.
type GroupProgressResponse struct {
	GroupID uint    `json:"group_id"`
	Average float64 `json:"average"`
}

// CourseProgressResponse carries the mean graded score of a course.
type CourseProgressResponse struct {
	CourseID uint    `json:"course_id"`
	Average  float64 `json:"average"`
}

// StudentDashboardResponse aggregates everything a student sees after logging in.
type StudentDashboardResponse struct {
	Groups              []GroupLite            `json:"groups"`
	RecentHomeworks     []HomeworkResponse     `json:"recent_homeworks"`
	UpcomingDeadlines   []HomeworkResponse     `json:"upcoming_deadlines"`
	TotalHomeworks      int64                  `json:"total_homeworks"`
	SubmittedHomeworks  int64                  `json:"submitted_homeworks"`
	AverageScore        float64                `json:"average_score"`
	Progress            float64                `json:"progress"`
	UnreadNotifications []NotificationResponse `json:"unread_notifications"`
	AutoGraded          int                    `json:"auto_graded"`
	GeneratedAt         time.Time              `json:"generated_at"`
}

// TeacherGroupStats summarises one of the teacher's groups.
type TeacherGroupStats struct {
	Group         GroupLite `json:"group"`
	StudentCount  int64     `json:"student_count"`
	HomeworkCount int64     `json:"homework_count"`
	AverageScore  float64   `json:"average_score"`
	PendingCount  int64     `json:"pending_count"`
	GroupAverage  float64   `json:"group_average"`
}

// TeacherDashboardResponse aggregates a teacher's groups and grading backlog.
type TeacherDashboardResponse struct {
	Groups         []TeacherGroupStats  `json:"groups"`
	TotalGroups    int                  `json:"total_groups"`
	TotalStudents  int64                `json:"total_students"`
	TotalHomeworks int64                `json:"total_homeworks"`
	TotalPending   int64                `json:"total_pending"`
	RecentPending  []SubmissionResponse `json:"recent_pending"`
	GeneratedAt    time.Time            `json:"generated_at"`
}

// CourseStats summarises a course on the admin dashboard.
type CourseStats struct {
	ID            uint    `json:"id"`
	Name          string  `json:"name"`
	GroupCount    int     `json:"group_count"`
	StudentCount  int64   `json:"student_count"`
	CourseAverage float64 `json:"course_average"`
}

// AdminDashboardResponse aggregates system-wide statistics.
type AdminDashboardResponse struct {
	TotalStudents     int64                `json:"total_students"`
	TotalTeachers     int64                `json:"total_teachers"`
	TotalCourses      int64                `json:"total_courses"`
	TotalGroups       int64                `json:"total_groups"`
	AverageScore      float64              `json:"average_score"`
	Courses           []CourseStats        `json:"courses"`
	RecentUsers       []UserResponse       `json:"recent_users"`
	RecentSubmissions []SubmissionResponse `json:"recent_submissions"`
	IsModerator       bool                 `json:"is_moderator"`
	GeneratedAt       time.Time            `json:"generated_at"`
}

// StudentGroupStats is one row of a group statistics table.
type StudentGroupStats struct {
	Student        UserLite `json:"student"`
	Submitted      int64    `json:"submitted"`
	TotalHomeworks int64    `json:"total_homeworks"`
	AverageScore   float64  `json:"average_score"`
	Completion     float64  `json:"completion"`
}

// GroupStatsResponse lists per-student statistics for a group.
type GroupStatsResponse struct {
	Group        GroupLite           `json:"group"`
	Students     []StudentGroupStats `json:"students"`
	GroupAverage float64             `json:"group_average"`
}

// StudentAnalytics is the student's view of the analytics endpoint.
type StudentAnalytics struct {
	AverageScore      float64 `json:"average_score"`
	Progress          float64 `json:"progress"`
	TotalSubmissions  int64   `json:"total_submissions"`
	GradedSubmissions int64   `json:"graded_submissions"`
	LateSubmissions   int64   `json:"late_submissions"`
}

// GroupAverageItem pairs a group with its average.
type GroupAverageItem struct {
	Group        GroupLite `json:"group"`
	AverageScore float64   `json:"average_score"`
	GroupAverage float64   `json:"group_average"`
}

// TeacherAnalytics is the teacher's view of the analytics endpoint.
type TeacherAnalytics struct {
	Groups []GroupAverageItem `json:"groups"`
}

// AdminAnalytics is the admin and moderator view of the analytics endpoint.
type AdminAnalytics struct {
	TotalStudents     int64   `json:"total_students"`
	TotalTeachers     int64   `json:"total_teachers"`
	TotalHomeworks    int64   `json:"total_homeworks"`
	TotalSubmissions  int64   `json:"total_submissions"`
	GradedSubmissions int64   `json:"graded_submissions"`
	AverageScore      float64 `json:"average_score"`
}

// AnalyticsResponse holds exactly one role-specific section.
type AnalyticsResponse struct {
	Role    string            `json:"role"`
	Student *StudentAnalytics `json:"student,omitempty"`
	Teacher *TeacherAnalytics `json:"teacher,omitempty"`
	Admin   *AdminAnalytics   `json:"admin,omitempty"`
}

// SweepFailure records one isolated failure of a deadline sweep.
type SweepFailure struct {
	HomeworkID uint   `json:"homework_id"`
	StudentID  uint   `json:"student_id"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}

// SweepReport summarises a deadline sweep run.
type SweepReport struct {
	AutoGraded   int            `json:"auto_graded"`
	WarningsSent int            `json:"warnings_sent"`
	Failures     []SweepFailure `json:"failures"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
}
