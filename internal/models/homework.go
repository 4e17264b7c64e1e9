package models

import "time"

// Homework is an assignment given to every student of a group.
// Sequence orders homeworks inside the group and drives content locking.
type Homework struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Deadline    time.Time `gorm:"not null;index" json:"deadline"`
	MaxScore    int       `gorm:"not null;default:100" json:"max_score"`
	Sequence    int       `gorm:"not null;default:1;uniqueIndex:idx_homework_group_sequence" json:"sequence"`
	GroupID     uint      `gorm:"not null;uniqueIndex:idx_homework_group_sequence" json:"group_id"`
	Group       Group     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	CreatedByID *uint     `gorm:"index" json:"created_by_id"`
	CreatedBy   *User     `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsPastDeadline reports whether reference is strictly after the deadline.
func (h Homework) IsPastDeadline(reference time.Time) bool {
	return reference.After(h.Deadline)
}

// DueWithin reports whether the deadline is still ahead but no further than window.
func (h Homework) DueWithin(reference time.Time, window time.Duration) bool {
	return h.Deadline.After(reference) && !h.Deadline.After(reference.Add(window))
}
