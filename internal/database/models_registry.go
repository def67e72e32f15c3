package database

import "cnom/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Profile{},
		&models.UserRole{},
		&models.Application{},
		&models.Payment{},
		&models.Notification{},
	}
}
