package repository

import (
	"context"
	"errors"

	"cnom/internal/cache"
	"cnom/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleRepository defines persistence operations for user role assignments.
type RoleRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.UserRole, error)
	Assign(ctx context.Context, userID, role string) error
}

type roleRepository struct {
	db *gorm.DB
}

// NewRoleRepository returns a new RoleRepository implementation.
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) FindByUserID(ctx context.Context, userID string) (*models.UserRole, error) {
	var role models.UserRole
	err := cache.Aside(ctx, cache.RoleKey(userID), &role, cache.RoleTTL, func() error {
		if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&role).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("UserRole", userID)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// Assign creates or replaces the raw role of userID.
func (r *roleRepository) Assign(ctx context.Context, userID, role string) error {
	row := models.UserRole{UserID: userID, Role: role}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateRole(ctx, userID)
	return nil
}
