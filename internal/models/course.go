package models

import "time"

// Course groups together the study groups that follow the same programme.
type Course struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Groups      []Group   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"groups,omitempty"`
}

// Group is a class of students taught by one or more teachers within a course.
type Group struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CourseID  uint      `gorm:"not null;index" json:"course_id"`
	Teachers  []User    `gorm:"many2many:group_teachers;constraint:OnDelete:CASCADE" json:"teachers,omitempty"`
	Students  []User    `gorm:"many2many:group_students;constraint:OnDelete:CASCADE" json:"students,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName avoids the GROUPS keyword on postgres.
func (Group) TableName() string {
	return "study_groups"
}

// HasTeacher reports whether the loaded teacher set contains userID.
func (g Group) HasTeacher(userID uint) bool {
	for _, teacher := range g.Teachers {
		if teacher.ID == userID {
			return true
		}
	}
	return false
}

// HasStudent reports whether the loaded student set contains userID.
func (g Group) HasStudent(userID uint) bool {
	for _, student := range g.Students {
		if student.ID == userID {
			return true
		}
	}
	return false
}

// TeacherIDs lists the ids of the loaded teachers.
func (g Group) TeacherIDs() []uint {
	ids := make([]uint, 0, len(g.Teachers))
	for _, teacher := range g.Teachers {
		ids = append(ids, teacher.ID)
	}
	return ids
}
