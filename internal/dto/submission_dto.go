package dto

import (
	"time"

	"github.com/noah-isme/academy-api/internal/models"
)

// SubmissionCreateRequest is the student's answer to a homework. It arrives either
// as JSON or as multipart form fields next to an optional file.
type SubmissionCreateRequest struct {
	Content      string `json:"content" form:"content" validate:"omitempty,max=100000"`
	IsCode       bool   `json:"is_code" form:"is_code"`
	CodeLanguage string `json:"code_language" form:"code_language" validate:"omitempty,max=50"`
}

// GradeSubmissionRequest is the teacher's grading payload.
type GradeSubmissionRequest struct {
	ScorePercent *int   `json:"score_percent" validate:"required,gte=0,lte=100"`
	Comment      string `json:"comment" validate:"omitempty,max=5000"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID             uint          `json:"id"`
	HomeworkID     uint          `json:"homework_id"`
	StudentID      uint          `json:"student_id"`
	Content        string        `json:"content"`
	FileURL        string        `json:"file_url"`
	IsCode         bool          `json:"is_code"`
	CodeLanguage   string        `json:"code_language"`
	ScorePercent   int           `json:"score_percent"`
	IsGraded       bool          `json:"is_graded"`
	IsLate         bool          `json:"is_late"`
	TeacherComment string        `json:"teacher_comment"`
	SubmittedAt    time.Time     `json:"submitted_at"`
	GradedAt       *time.Time    `json:"graded_at"`
	GradedByID     *uint         `json:"graded_by_id"`
	Homework       *HomeworkLite `json:"homework,omitempty"`
	Student        *UserLite     `json:"student,omitempty"`
}

// HomeworkLite summarises a homework inside submission payloads.
type HomeworkLite struct {
	ID       uint      `json:"id"`
	Title    string    `json:"title"`
	Deadline time.Time `json:"deadline"`
	GroupID  uint      `json:"group_id"`
}

// SubmissionQueueResponse splits a teacher's submissions by grading state.
type SubmissionQueueResponse struct {
	Pending []SubmissionResponse `json:"pending"`
	Graded  []SubmissionResponse `json:"graded"`
}

// NewSubmissionResponse converts a Submission model into a DTO. Homework and
// student summaries are included when the associations were loaded.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:             model.ID,
		HomeworkID:     model.HomeworkID,
		StudentID:      model.StudentID,
		Content:        model.Content,
		FileURL:        model.FileURL,
		IsCode:         model.IsCode,
		CodeLanguage:   model.CodeLanguage,
		ScorePercent:   model.ScorePercent,
		IsGraded:       model.IsGraded,
		IsLate:         model.IsLate(),
		TeacherComment: model.TeacherComment,
		SubmittedAt:    model.SubmittedAt,
		GradedAt:       model.GradedAt,
		GradedByID:     model.GradedByID,
	}

	if model.Homework.ID != 0 {
		response.Homework = &HomeworkLite{
			ID:       model.Homework.ID,
			Title:    model.Homework.Title,
			Deadline: model.Homework.Deadline,
			GroupID:  model.Homework.GroupID,
		}
	}
	if model.Student.ID != 0 {
		student := NewUserLite(model.Student)
		response.Student = &student
	}

	return response
}

// NewSubmissionResponses converts a slice of submissions.
func NewSubmissionResponses(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewSubmissionResponse(item))
	}
	return responses
}
