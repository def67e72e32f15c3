package models

import "time"

// ApplicationStatus tracks a registration application through review.
type ApplicationStatus string

// Application statuses.
const (
	ApplicationStatusDraft             ApplicationStatus = "draft"
	ApplicationStatusSubmitted         ApplicationStatus = "submitted"
	ApplicationStatusUnderReview       ApplicationStatus = "under_review"
	ApplicationStatusDocumentsRequired ApplicationStatus = "documents_required"
	ApplicationStatusRejected          ApplicationStatus = "rejected"
	ApplicationStatusValidated         ApplicationStatus = "validated"
)

// Valid reports whether s is a known application status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusDraft, ApplicationStatusSubmitted, ApplicationStatusUnderReview,
		ApplicationStatusDocumentsRequired, ApplicationStatusRejected, ApplicationStatusValidated:
		return true
	}
	return false
}

// Application is a practitioner's registration request. One per profile.
type Application struct {
	ID          string            `gorm:"primaryKey;size:36" json:"id"`
	ProfileID   string            `gorm:"uniqueIndex;size:36;not null" json:"profile_id"`
	Status      ApplicationStatus `gorm:"size:24;not null;default:draft;index" json:"status"`
	SubmittedAt *time.Time        `json:"submitted_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// TableName returns the database table name for Application.
func (Application) TableName() string {
	return "applications"
}
