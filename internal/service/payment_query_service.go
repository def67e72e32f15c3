package service

import (
	"context"

	"cnom/internal/access"
	"cnom/internal/cache"
	"cnom/internal/models"
	"cnom/internal/repository"
)

// CallbackReader lists journaled provider callbacks.
type CallbackReader interface {
	Recent(ctx context.Context, limit int) ([]cache.CallbackEntry, error)
}

// PaymentQueryService serves the read side of payments and applications for
// the dashboard.
type PaymentQueryService struct {
	payments      repository.PaymentRepository
	applications  repository.ApplicationRepository
	notifications repository.NotificationRepository
	callbacks     CallbackReader
}

// Viewer identifies who is reading. ProfileID is empty for demo sessions.
type Viewer struct {
	Role      access.Role
	ProfileID string
}

func NewPaymentQueryService(
	payments repository.PaymentRepository,
	applications repository.ApplicationRepository,
	notificationRepo repository.NotificationRepository,
	callbacks CallbackReader,
) *PaymentQueryService {
	return &PaymentQueryService{
		payments:      payments,
		applications:  applications,
		notifications: notificationRepo,
		callbacks:     callbacks,
	}
}

func (s *PaymentQueryService) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, models.NewValidationError("Invalid payment status")
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, models.NewValidationError("Invalid payment type")
	}
	return s.payments.List(ctx, filter)
}

// GetPayment returns the payment for transactionID. A medecin only sees their
// own payments; anything else reads as not found.
func (s *PaymentQueryService) GetPayment(ctx context.Context, transactionID string, viewer Viewer) (*models.Payment, error) {
	payment, err := s.payments.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if viewer.Role == access.RoleMedecin && payment.ProfileID != viewer.ProfileID {
		return nil, models.NewNotFoundError("Payment", transactionID)
	}
	return payment, nil
}

// MyApplication returns the viewer's own registration application. Demo
// sessions carry no profile and have none.
func (s *PaymentQueryService) MyApplication(ctx context.Context, viewer Viewer) (*models.Application, error) {
	if viewer.ProfileID == "" {
		return nil, models.NewNotFoundError("Application", "demo")
	}
	return s.applications.FindByProfileID(ctx, viewer.ProfileID)
}

func (s *PaymentQueryService) ListApplications(ctx context.Context, status models.ApplicationStatus, limit, offset int) ([]models.Application, error) {
	if status != "" && !status.Valid() {
		return nil, models.NewValidationError("Invalid application status")
	}
	return s.applications.List(ctx, status, limit, offset)
}

func (s *PaymentQueryService) RecentCallbacks(ctx context.Context, limit int) ([]cache.CallbackEntry, error) {
	if s.callbacks == nil {
		return []cache.CallbackEntry{}, nil
	}
	entries, err := s.callbacks.Recent(ctx, limit)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return entries, nil
}

func (s *PaymentQueryService) ListNotifications(ctx context.Context, profileID string, limit int) ([]models.Notification, error) {
	return s.notifications.ListByProfile(ctx, profileID, limit)
}
