package dto

import (
	"time"

	"github.com/noah-isme/academy-api/internal/models"
)

// NotificationResponse is the representation pushed over HTTP and websocket.
type NotificationResponse struct {
	ID                uint      `json:"id"`
	UserID            uint      `json:"user_id"`
	Type              string    `json:"type"`
	Title             string    `json:"title"`
	Message           string    `json:"message"`
	IsRead            bool      `json:"is_read"`
	RelatedHomeworkID *uint     `json:"related_homework_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// UnreadCountResponse reports the unread notification count.
type UnreadCountResponse struct {
	Unread int64 `json:"unread"`
}

// NewNotificationResponse converts a notification model.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:                model.ID,
		UserID:            model.UserID,
		Type:              string(model.Type),
		Title:             model.Title,
		Message:           model.Message,
		IsRead:            model.IsRead,
		RelatedHomeworkID: model.RelatedHomeworkID,
		CreatedAt:         model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice of notifications.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewNotificationResponse(item))
	}
	return responses
}
