package dto

import (
	"time"

	"github.com/noah-isme/academy-api/internal/models"
)

// HomeworkCreateRequest is the payload for publishing a homework to a group.
// Sequence is optional; when omitted the homework goes after the group's last one.
type HomeworkCreateRequest struct {
	Title       string    `json:"title" validate:"required,min=1,max=255"`
	Description string    `json:"description" validate:"omitempty,max=20000"`
	Deadline    time.Time `json:"deadline" validate:"required"`
	GroupID     uint      `json:"group_id" validate:"required,gt=0"`
	Sequence    *int      `json:"sequence" validate:"omitempty,gte=1"`
	MaxScore    *int      `json:"max_score" validate:"omitempty,gte=1,lte=100"`
}

// HomeworkUpdateRequest carries partial homework updates.
type HomeworkUpdateRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string    `json:"description" validate:"omitempty,max=20000"`
	Deadline    *time.Time `json:"deadline"`
	Sequence    *int       `json:"sequence" validate:"omitempty,gte=1"`
	MaxScore    *int       `json:"max_score" validate:"omitempty,gte=1,lte=100"`
}

// HomeworkResponse is the common homework representation.
type HomeworkResponse struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline"`
	Sequence    int       `json:"sequence"`
	MaxScore    int       `json:"max_score"`
	GroupID     uint      `json:"group_id"`
	GroupName   string    `json:"group_name,omitempty"`
	CreatedByID *uint     `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// StudentHomeworkItem decorates a homework with the requesting student's state.
type StudentHomeworkItem struct {
	HomeworkResponse
	IsLocked        bool `json:"is_locked"`
	IsSubmitted     bool `json:"is_submitted"`
	IsOverdue       bool `json:"is_overdue"`
	DeadlineWarning bool `json:"deadline_warning"`
}

// TeacherHomeworkItem decorates a homework with submission counters.
type TeacherHomeworkItem struct {
	HomeworkResponse
	TotalStudents int64 `json:"total_students"`
	Submitted     int64 `json:"submitted"`
	Graded        int64 `json:"graded"`
	Pending       int64 `json:"pending"`
}

// HomeworkDetail is returned by GET /homeworks/:id. Student-only and staff-only
// fields are left empty for the other audience.
type HomeworkDetail struct {
	Homework       HomeworkResponse     `json:"homework"`
	Submission     *SubmissionResponse  `json:"submission,omitempty"`
	CanSubmit      bool                 `json:"can_submit"`
	Submissions    []SubmissionResponse `json:"submissions,omitempty"`
	NotSubmitted   []UserLite           `json:"not_submitted,omitempty"`
	AverageScore   float64              `json:"average_score"`
	SubmittedCount int                  `json:"submitted_count"`
	TotalStudents  int                  `json:"total_students"`
}

// FanOutFailure records a student who could not be notified.
type FanOutFailure struct {
	StudentID uint   `json:"student_id"`
	Error     string `json:"error"`
}

// FanOutReport summarises a best-effort notification batch.
type FanOutReport struct {
	Attempted int             `json:"attempted"`
	Delivered int             `json:"delivered"`
	Failures  []FanOutFailure `json:"failures"`
}

// HomeworkCreateResponse bundles the new homework with its notification report.
type HomeworkCreateResponse struct {
	Homework      HomeworkResponse `json:"homework"`
	Notifications FanOutReport     `json:"notifications"`
}

// LockResponse reports whether a student may open a homework.
type LockResponse struct {
	HomeworkID uint `json:"homework_id"`
	StudentID  uint `json:"student_id"`
	Locked     bool `json:"locked"`
}

// NewHomeworkResponse converts a homework model.
func NewHomeworkResponse(homework models.Homework) HomeworkResponse {
	return HomeworkResponse{
		ID:          homework.ID,
		Title:       homework.Title,
		Description: homework.Description,
		Deadline:    homework.Deadline,
		Sequence:    homework.Sequence,
		MaxScore:    homework.MaxScore,
		GroupID:     homework.GroupID,
		GroupName:   homework.Group.Name,
		CreatedByID: homework.CreatedByID,
		CreatedAt:   homework.CreatedAt,
	}
}

// NewHomeworkResponses converts a slice of homeworks.
func NewHomeworkResponses(homeworks []models.Homework) []HomeworkResponse {
	responses := make([]HomeworkResponse, 0, len(homeworks))
	for _, homework := range homeworks {
		responses = append(responses, NewHomeworkResponse(homework))
	}
	return responses
}

// HomeworkListResponse is the role-shaped homework listing. Items holds
// []StudentHomeworkItem for students, []TeacherHomeworkItem for teachers and
// []HomeworkResponse for administrators.
type HomeworkListResponse struct {
	Role  string      `json:"role"`
	Items interface{} `json:"items"`
}
