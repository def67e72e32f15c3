package repository

import (
	"context"
	"errors"

	"cnom/internal/models"

	"gorm.io/gorm"
)

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository returns a new ProfileRepository implementation.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Profile", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &profile, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("Profile already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}
