package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"cnom/internal/models"
	"cnom/internal/repository"
)

// PaymentRepoStub is an in-memory payment repository with the same
// conditional settle semantics as the database implementation.
type PaymentRepoStub struct {
	mu       sync.Mutex
	payments map[string]*models.Payment

	// Writes counts Settle and Create calls.
	Writes int
	// SettleErr, when set, is returned by Settle without changing state.
	SettleErr error
	// FindErr, when set, is returned by FindByTransactionID.
	FindErr error
}

var _ repository.PaymentRepository = (*PaymentRepoStub)(nil)

// NewPaymentRepoStub creates a payment stub holding the given payments.
func NewPaymentRepoStub(payments ...models.Payment) *PaymentRepoStub {
	s := &PaymentRepoStub{payments: make(map[string]*models.Payment)}
	for i := range payments {
		p := payments[i]
		s.payments[p.TransactionID] = &p
	}
	return s
}

// Get returns a copy of the stored payment for transactionID.
func (s *PaymentRepoStub) Get(transactionID string) (models.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[transactionID]
	if !ok {
		return models.Payment{}, false
	}
	return *p, true
}

// FindByTransactionID returns a copy of the matching payment.
func (s *PaymentRepoStub) FindByTransactionID(_ context.Context, transactionID string) (*models.Payment, error) {
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	p, ok := s.Get(transactionID)
	if !ok {
		return nil, models.NewNotFoundError("Payment", transactionID)
	}
	return &p, nil
}

// Settle applies outcome if the payment is still pending.
func (s *PaymentRepoStub) Settle(_ context.Context, id string, outcome models.PaymentOutcome) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes++
	if s.SettleErr != nil {
		return false, s.SettleErr
	}
	for _, p := range s.payments {
		if p.ID != id {
			continue
		}
		if p.PaymentStatus != models.PaymentStatusPending {
			return false, nil
		}
		p.PaymentStatus = outcome.Status
		p.PaidAt = outcome.PaidAt
		p.ProviderReference = outcome.ProviderReference
		p.ProviderStatusCode = outcome.ProviderStatusCode
		p.ProviderMessage = outcome.ProviderMessage
		p.UpdatedAt = time.Now().UTC()
		return true, nil
	}
	return false, nil
}

// Create stores payment.
func (s *PaymentRepoStub) Create(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes++
	if _, exists := s.payments[payment.TransactionID]; exists {
		return models.NewValidationError("Payment transaction already exists")
	}
	p := *payment
	s.payments[p.TransactionID] = &p
	return nil
}

// List returns payments matching filter, newest first.
func (s *PaymentRepoStub) List(_ context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		if filter.Status != "" && p.PaymentStatus != filter.Status {
			continue
		}
		if filter.Type != "" && p.PaymentType != filter.Type {
			continue
		}
		if filter.ProfileID != "" && p.ProfileID != filter.ProfileID {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// CountStalePending counts pending payments created before createdBefore.
func (s *PaymentRepoStub) CountStalePending(_ context.Context, createdBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.payments {
		if p.PaymentStatus == models.PaymentStatusPending && p.CreatedAt.Before(createdBefore) {
			n++
		}
	}
	return n, nil
}

// ApplicationRepoStub is an in-memory application repository keyed by profile.
type ApplicationRepoStub struct {
	mu           sync.Mutex
	applications map[string]*models.Application

	Writes     int
	AdvanceErr error
}

var _ repository.ApplicationRepository = (*ApplicationRepoStub)(nil)

// NewApplicationRepoStub creates an application stub holding the given applications.
func NewApplicationRepoStub(applications ...models.Application) *ApplicationRepoStub {
	s := &ApplicationRepoStub{applications: make(map[string]*models.Application)}
	for i := range applications {
		a := applications[i]
		s.applications[a.ProfileID] = &a
	}
	return s
}

// Status returns the current status of the profile's application.
func (s *ApplicationRepoStub) Status(profileID string) models.ApplicationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.applications[profileID]; ok {
		return a.Status
	}
	return ""
}

// FindByProfileID returns a copy of the profile's application.
func (s *ApplicationRepoStub) FindByProfileID(_ context.Context, profileID string) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.applications[profileID]
	if !ok {
		return nil, models.NewNotFoundError("Application", profileID)
	}
	cp := *a
	return &cp, nil
}

// AdvanceStatus moves the application from `from` to `to` if it is currently `from`.
func (s *ApplicationRepoStub) AdvanceStatus(_ context.Context, profileID string, from, to models.ApplicationStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes++
	if s.AdvanceErr != nil {
		return false, s.AdvanceErr
	}
	a, ok := s.applications[profileID]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	return true, nil
}

// Create stores application.
func (s *ApplicationRepoStub) Create(_ context.Context, application *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes++
	if _, exists := s.applications[application.ProfileID]; exists {
		return models.NewValidationError("Profile already has an application")
	}
	a := *application
	s.applications[a.ProfileID] = &a
	return nil
}

// List returns applications with the given status, or all when status is empty.
func (s *ApplicationRepoStub) List(_ context.Context, status models.ApplicationStatus, _, _ int) ([]models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Application, 0, len(s.applications))
	for _, a := range s.applications {
		if status == "" || a.Status == status {
			out = append(out, *a)
		}
	}
	return out, nil
}

// NotificationRepoStub records created notifications.
type NotificationRepoStub struct {
	mu    sync.Mutex
	items []models.Notification

	CreateErr error
}

var _ repository.NotificationRepository = (*NotificationRepoStub)(nil)

// Create records notification.
func (s *NotificationRepoStub) Create(_ context.Context, notification *models.Notification) error {
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	notification.ID = uint(len(s.items) + 1)
	s.items = append(s.items, *notification)
	return nil
}

// ListByProfile returns notifications addressed to profileID.
func (s *NotificationRepoStub) ListByProfile(_ context.Context, profileID string, _ int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.items {
		if n.ProfileID == profileID {
			out = append(out, n)
		}
	}
	return out, nil
}

// All returns every recorded notification.
func (s *NotificationRepoStub) All() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.items...)
}

// RoleRepoStub serves raw roles from a map.
type RoleRepoStub struct {
	mu    sync.Mutex
	Roles map[string]string
	Err   error
}

var _ repository.RoleRepository = (*RoleRepoStub)(nil)

// FindByUserID returns the stored raw role for userID.
func (s *RoleRepoStub) FindByUserID(_ context.Context, userID string) (*models.UserRole, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.Roles[userID]
	if !ok {
		return nil, models.NewNotFoundError("UserRole", userID)
	}
	return &models.UserRole{UserID: userID, Role: raw}, nil
}

// Assign stores role for userID.
func (s *RoleRepoStub) Assign(_ context.Context, userID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Roles == nil {
		s.Roles = make(map[string]string)
	}
	s.Roles[userID] = role
	return nil
}
