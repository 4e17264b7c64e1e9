package models

import "time"

// AutoGradeContent is stored on the zero-score submissions created for missed deadlines.
const AutoGradeContent = "Automatically graded 0% due to missed deadline."

// Submission is a student's answer to a homework. There is at most one per
// (homework, student); the unique index is what makes the deadline sweep idempotent.
type Submission struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	HomeworkID     uint       `gorm:"not null;uniqueIndex:idx_submission_homework_student" json:"homework_id"`
	StudentID      uint       `gorm:"not null;uniqueIndex:idx_submission_homework_student;index" json:"student_id"`
	Content        string     `gorm:"type:text" json:"content"`
	FileURL        string     `gorm:"size:512" json:"file_url"`
	IsCode         bool       `gorm:"not null;default:false" json:"is_code"`
	CodeLanguage   string     `gorm:"size:50;default:python" json:"code_language"`
	ScorePercent   int        `gorm:"not null;default:0" json:"score_percent"`
	IsGraded       bool       `gorm:"not null;default:false;index" json:"is_graded"`
	TeacherComment string     `gorm:"type:text" json:"teacher_comment"`
	SubmittedAt    time.Time  `gorm:"not null;autoCreateTime" json:"submitted_at"`
	GradedAt       *time.Time `json:"graded_at"`
	GradedByID     *uint      `json:"graded_by_id"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Homework       Homework   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student        User       `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	GradedBy       *User      `gorm:"foreignKey:GradedByID;constraint:OnDelete:SET NULL" json:"-"`
}

// IsLate reports whether the submission arrived after the homework deadline.
// Homework must be loaded.
func (s Submission) IsLate() bool {
	if s.Homework.ID == 0 {
		return false
	}
	return s.SubmittedAt.After(s.Homework.Deadline)
}
