package dto

import (
	"time"

	"github.com/noah-isme/academy-api/internal/models"
)

// CourseRequest is used to create or update a course.
type CourseRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Description string `json:"description" validate:"omitempty,max=5000"`
}

// CourseResponse describes a course and its groups.
type CourseResponse struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Groups      []GroupResponse `json:"groups"`
	CreatedAt   time.Time       `json:"created_at"`
}

// GroupRequest is used to create or update a group.
type GroupRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=255"`
	CourseID uint   `json:"course_id" validate:"required,gt=0"`
}

// MembershipRequest adds a user to a group.
type MembershipRequest struct {
	UserID uint `json:"user_id" validate:"required,gt=0"`
}

// GroupResponse describes a group with its members.
type GroupResponse struct {
	ID        uint       `json:"id"`
	Name      string     `json:"name"`
	CourseID  uint       `json:"course_id"`
	Teachers  []UserLite `json:"teachers"`
	Students  []UserLite `json:"students"`
	CreatedAt time.Time  `json:"created_at"`
}

// GroupLite summarises a group inside other payloads.
type GroupLite struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	CourseID uint   `json:"course_id"`
}

// NewCourseResponse converts a course, including any loaded groups.
func NewCourseResponse(course models.Course) CourseResponse {
	groups := make([]GroupResponse, 0, len(course.Groups))
	for _, group := range course.Groups {
		groups = append(groups, NewGroupResponse(group))
	}
	return CourseResponse{
		ID:          course.ID,
		Name:        course.Name,
		Description: course.Description,
		Groups:      groups,
		CreatedAt:   course.CreatedAt,
	}
}

// NewGroupResponse converts a group with whatever members were preloaded.
func NewGroupResponse(group models.Group) GroupResponse {
	return GroupResponse{
		ID:        group.ID,
		Name:      group.Name,
		CourseID:  group.CourseID,
		Teachers:  newUserLites(group.Teachers),
		Students:  newUserLites(group.Students),
		CreatedAt: group.CreatedAt,
	}
}

// NewGroupLite builds the compact group summary.
func NewGroupLite(group models.Group) GroupLite {
	return GroupLite{ID: group.ID, Name: group.Name, CourseID: group.CourseID}
}
