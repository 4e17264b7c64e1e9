package dto

import (
	"time"

	"github.com/noah-isme/academy-api/internal/models"
)

// UserListRequest describes the query filters accepted when listing users.
type UserListRequest struct {
	Role   string `query:"role" validate:"omitempty,oneof=ADMIN MODERATOR TEACHER STUDENT admin moderator teacher student"`
	Search string `query:"search" validate:"omitempty,max=150"`
	Status string `query:"status" validate:"omitempty,oneof=active blocked"`
}

// UserCreateRequest is the payload for creating an account.
type UserCreateRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=150"`
	FirstName string `json:"first_name" validate:"omitempty,max=150"`
	LastName  string `json:"last_name" validate:"omitempty,max=150"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,max=15"`
	Role      string `json:"role" validate:"required,oneof=ADMIN MODERATOR TEACHER STUDENT admin moderator teacher student"`
}

// UserUpdateRequest carries partial updates to an account.
type UserUpdateRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=15"`
	Role      *string `json:"role" validate:"omitempty,oneof=ADMIN MODERATOR TEACHER STUDENT admin moderator teacher student"`
	IsActive  *bool   `json:"is_active"`
}

// UserResponse is the public representation of a user.
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserLite summarises a user inside other payloads.
type UserLite struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// NewUserResponse converts a user model into its DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		FullName:  user.FullName(),
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Phone:     user.Phone,
		Role:      string(user.Role),
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}

// NewUserResponses converts a slice of users.
func NewUserResponses(users []models.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, NewUserResponse(user))
	}
	return responses
}

// NewUserLite builds the compact user summary.
func NewUserLite(user models.User) UserLite {
	return UserLite{ID: user.ID, Username: user.Username, FullName: user.FullName()}
}

func newUserLites(users []models.User) []UserLite {
	lites := make([]UserLite, 0, len(users))
	for _, user := range users {
		lites = append(lites, NewUserLite(user))
	}
	return lites
}
