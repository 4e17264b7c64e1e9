package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/academy-api/internal/models"
)

// Migrate creates or updates every table owned by the service.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Group{},
		&models.Homework{},
		&models.Submission{},
		&models.Notification{},
		&models.ActivityLog{},
	)
}
