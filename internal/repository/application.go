package repository

import (
	"context"
	"errors"

	"cnom/internal/models"
	"cnom/internal/observability"

	"gorm.io/gorm"
)

// ApplicationRepository defines persistence operations for registration applications.
type ApplicationRepository interface {
	FindByProfileID(ctx context.Context, profileID string) (*models.Application, error)
	// AdvanceStatus moves the profile's application to `to` only if it is
	// currently `from`, and reports whether a row changed.
	AdvanceStatus(ctx context.Context, profileID string, from, to models.ApplicationStatus) (bool, error)
	Create(ctx context.Context, application *models.Application) error
	List(ctx context.Context, status models.ApplicationStatus, limit, offset int) ([]models.Application, error)
}

type applicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository returns a new ApplicationRepository implementation.
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) FindByProfileID(ctx context.Context, profileID string) (*models.Application, error) {
	var application models.Application
	if err := r.db.WithContext(ctx).Where("profile_id = ?", profileID).First(&application).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Application", profileID)
		}
		return nil, models.NewInternalError(err)
	}
	return &application, nil
}

func (r *applicationRepository) AdvanceStatus(ctx context.Context, profileID string, from, to models.ApplicationStatus) (bool, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "AdvanceStatus", "applications")
	defer span.End()

	res := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("profile_id = ? AND status = ?", profileID, from).
		Update("status", to)
	if res.Error != nil {
		span.RecordError(res.Error)
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *applicationRepository) Create(ctx context.Context, application *models.Application) error {
	if err := r.db.WithContext(ctx).Create(application).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("Profile already has an application")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *applicationRepository) List(ctx context.Context, status models.ApplicationStatus, limit, offset int) ([]models.Application, error) {
	limit, offset = clampPage(limit, offset)

	q := r.db.WithContext(ctx).Model(&models.Application{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var applications []models.Application
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&applications).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return applications, nil
}
