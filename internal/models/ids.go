package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BeforeCreate assigns a UUID when the caller did not provide one.
func (p *Payment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	if p.PaymentStatus == "" {
		p.PaymentStatus = PaymentStatusPending
	}
	return nil
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (a *Application) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = ApplicationStatusDraft
	}
	return nil
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (p *Profile) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
