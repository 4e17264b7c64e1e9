package models

import (
	"fmt"
	"time"
)

// NotificationType classifies why a notification was sent.
type NotificationType string

const (
	NotificationDeadlineWarning NotificationType = "DEADLINE"
	NotificationNewHomework     NotificationType = "NEW_HW"
	NotificationGraded          NotificationType = "GRADED"
	NotificationSystem          NotificationType = "SYSTEM"
)

// Notification is a message for one user. Only IsRead ever changes after creation.
//
// DedupeKey is set for notifications that must exist at most once (deadline
// warnings); the unique index turns check-then-insert into a single atomic insert.
type Notification struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	UserID            uint             `gorm:"not null;index" json:"user_id"`
	User              User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Type              NotificationType `gorm:"size:20;not null;default:SYSTEM" json:"type"`
	Title             string           `gorm:"size:255;not null" json:"title"`
	Message           string           `gorm:"type:text" json:"message"`
	IsRead            bool             `gorm:"not null;default:false" json:"is_read"`
	RelatedHomeworkID *uint            `gorm:"index" json:"related_homework_id"`
	RelatedHomework   *Homework        `gorm:"foreignKey:RelatedHomeworkID;constraint:OnDelete:CASCADE" json:"-"`
	DedupeKey         *string          `gorm:"size:128;uniqueIndex" json:"-"`
	CreatedAt         time.Time        `json:"created_at"`
}

// DeadlineWarningKey identifies the single deadline warning allowed per (homework, user).
func DeadlineWarningKey(homeworkID, userID uint) string {
	return fmt.Sprintf("deadline:%d:%d", homeworkID, userID)
}
