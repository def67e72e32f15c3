package repository

import (
	"context"
	"errors"
	"time"

	"cnom/internal/models"
	"cnom/internal/observability"

	"gorm.io/gorm"
)

// PaymentRepository defines persistence operations for payments.
type PaymentRepository interface {
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	// Settle moves a pending payment to a terminal status. It reports false
	// when the payment was no longer pending.
	Settle(ctx context.Context, id string, outcome models.PaymentOutcome) (bool, error)
	Create(ctx context.Context, payment *models.Payment) error
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error)
	CountStalePending(ctx context.Context, createdBefore time.Time) (int64, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository returns a new PaymentRepository implementation.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "FindByTransactionID", "payments")
	defer span.End()

	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Payment", transactionID)
		}
		return nil, models.NewInternalError(err)
	}
	return &payment, nil
}

func (r *paymentRepository) Settle(ctx context.Context, id string, outcome models.PaymentOutcome) (bool, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "Settle", "payments")
	defer span.End()

	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND payment_status = ?", id, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_status":       outcome.Status,
			"paid_at":              outcome.PaidAt,
			"provider_reference":   outcome.ProviderReference,
			"provider_status_code": outcome.ProviderStatusCode,
			"provider_message":     outcome.ProviderMessage,
		})
	if res.Error != nil {
		span.RecordError(res.Error)
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("Payment transaction already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *paymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	limit, offset := clampPage(filter.Limit, filter.Offset)

	q := r.db.WithContext(ctx).Model(&models.Payment{})
	if filter.Status != "" {
		q = q.Where("payment_status = ?", filter.Status)
	}
	if filter.Type != "" {
		q = q.Where("payment_type = ?", filter.Type)
	}
	if filter.ProfileID != "" {
		q = q.Where("profile_id = ?", filter.ProfileID)
	}

	var payments []models.Payment
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&payments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return payments, nil
}

func (r *paymentRepository) CountStalePending(ctx context.Context, createdBefore time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("payment_status = ? AND created_at < ?", models.PaymentStatusPending, createdBefore).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
