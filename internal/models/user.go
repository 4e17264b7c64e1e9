package models

import (
	"strings"
	"time"
)

// Role identifies what a user is allowed to do in the academy.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
	RoleTeacher   Role = "TEACHER"
	RoleStudent   Role = "STUDENT"
)

// ParseRole normalises free-form role input ("teacher", " Admin ").
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(value)))
	switch role {
	case RoleAdmin, RoleModerator, RoleTeacher, RoleStudent:
		return role, true
	default:
		return "", false
	}
}

// User is any account of the academy, regardless of role.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	FirstName string    `gorm:"size:150" json:"first_name"`
	LastName  string    `gorm:"size:150" json:"last_name"`
	Email     string    `gorm:"size:255" json:"email"`
	Phone     string    `gorm:"size:15" json:"phone"`
	Role      Role      `gorm:"size:20;not null;default:STUDENT;index" json:"role"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns "First Last", falling back to the username.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}
