package models

import "time"

// User captures the persisted fields of a registered identity. Secrets and
// in-flight tokens are excluded from JSON output.
type User struct {
	ID                     string    `json:"id"`
	Email                  string    `json:"email"`
	Phone                  string    `json:"phone"`
	FirstName              string    `json:"firstName"`
	LastName               string    `json:"lastName,omitempty"`
	PasswordHash           string    `json:"-"`
	EmailVerified          bool      `json:"emailVerified"`
	PhoneVerified          bool      `json:"phoneVerified"`
	EmailVerificationToken string    `json:"-"`
	PhoneVerificationToken string    `json:"-"`
	RefreshToken           string    `json:"-"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}
