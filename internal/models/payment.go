package models

import "time"

// PaymentType enumerates what a payment settles.
type PaymentType string

// Payment types accepted by the licensing body.
const (
	PaymentTypeInscription            PaymentType = "inscription"
	PaymentTypeCotisationAnnuelle     PaymentType = "cotisation_annuelle"
	PaymentTypeCotisationSemestrielle PaymentType = "cotisation_semestrielle"
	PaymentTypeCotisationMensuelle    PaymentType = "cotisation_mensuelle"
)

// Valid reports whether t is a known payment type.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeInscription, PaymentTypeCotisationAnnuelle,
		PaymentTypeCotisationSemestrielle, PaymentTypeCotisationMensuelle:
		return true
	}
	return false
}

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

// Payment statuses. Only pending is non-terminal.
const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Terminal reports whether the status can no longer be changed by a provider callback.
func (s PaymentStatus) Terminal() bool {
	return s != PaymentStatusPending
}

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// Airtel Money status codes that mean the transaction succeeded.
var successfulProviderCodes = map[string]struct{}{
	"TS":  {},
	"200": {},
}

// VerdictForProviderCode maps a provider status code to the resulting payment status.
// Unknown codes, including the empty string, are treated as failures.
func VerdictForProviderCode(code string) PaymentStatus {
	if _, ok := successfulProviderCodes[code]; ok {
		return PaymentStatusCompleted
	}
	return PaymentStatusFailed
}

// DefaultCurrency is the currency of every payment collected through Airtel Money.
const DefaultCurrency = "XAF"

// Payment is a mobile-money transaction initiated by a practitioner.
// PaidAt is set if and only if PaymentStatus is completed.
type Payment struct {
	ID                 string        `gorm:"primaryKey;size:36" json:"id"`
	TransactionID      string        `gorm:"uniqueIndex;size:64;not null" json:"transaction_id"`
	ProfileID          string        `gorm:"index;size:36;not null" json:"profile_id"`
	PaymentType        PaymentType   `gorm:"size:32;not null" json:"payment_type"`
	PaymentStatus      PaymentStatus `gorm:"size:16;not null;default:pending;index" json:"payment_status"`
	PaidAt             *time.Time    `json:"paid_at"`
	Amount             int64         `gorm:"not null;default:0" json:"amount"`
	Currency           string        `gorm:"size:3;not null;default:XAF" json:"currency"`
	PhoneNumber        string        `gorm:"size:32" json:"phone_number,omitempty"`
	ProviderReference  string        `gorm:"type:text" json:"provider_reference,omitempty"`
	ProviderStatusCode string        `gorm:"type:text" json:"provider_status_code,omitempty"`
	ProviderMessage    string        `gorm:"type:text" json:"provider_message,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Payment.
func (Payment) TableName() string {
	return "payments"
}

// PaymentOutcome carries the fields written when a pending payment is settled.
type PaymentOutcome struct {
	Status             PaymentStatus
	PaidAt             *time.Time
	ProviderReference  string
	ProviderStatusCode string
	ProviderMessage    string
}

// PaymentFilter narrows administrative payment listings.
type PaymentFilter struct {
	Status    PaymentStatus
	Type      PaymentType
	ProfileID string
	Limit     int
	Offset    int
}
