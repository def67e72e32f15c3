// Package models contains data structures for the application's domain models.
package models

import "time"

// Profile is a practitioner or staff member. ID equals the authenticated principal id.
type Profile struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	FirstName string    `gorm:"size:100" json:"first_name"`
	LastName  string    `gorm:"size:100" json:"last_name"`
	Phone     string    `gorm:"size:32" json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string {
	return "profiles"
}

// UserRole is the persisted role assignment of a user, as written by administrators.
// Role holds the raw administrative value, not the application vocabulary.
type UserRole struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"uniqueIndex;size:36;not null" json:"user_id"`
	Role      string    `gorm:"size:32;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for UserRole.
func (UserRole) TableName() string {
	return "user_roles"
}

// NotificationType categorizes in-app notifications.
type NotificationType string

// Notification types written by the payment reconciler.
const (
	NotificationPaymentCompleted NotificationType = "payment_completed"
	NotificationPaymentFailed    NotificationType = "payment_failed"
)

// Notification is an in-app message addressed to a profile.
type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	ProfileID string           `gorm:"index;size:36;not null" json:"profile_id"`
	Title     string           `gorm:"size:255;not null" json:"title"`
	Message   string           `gorm:"type:text" json:"message"`
	Type      NotificationType `gorm:"size:32;not null" json:"type"`
	Read      bool             `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string {
	return "notifications"
}
