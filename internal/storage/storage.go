package storage

import (
	"context"
	"errors"

	"github.com/yourusername/userbase/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict on email or phone.
var ErrAlreadyExists = errors.New("record already exists")

// UserPatch names the fields a partial update may touch. Nil pointers are
// left untouched; a pointer to the zero value clears the field. Updates
// applied through a patch skip full-record validation on purpose: setting a
// password hash or clearing a refresh token must not re-trigger unrelated
// required-field checks.
type UserPatch struct {
	Email                  *string
	Phone                  *string
	FirstName              *string
	LastName               *string
	PasswordHash           *string
	EmailVerified          *bool
	PhoneVerified          *bool
	EmailVerificationToken *string
	PhoneVerificationToken *string
	RefreshToken           *string
}

// UserStore captures persistence operations needed by the user service.
// Implementations must apply UpdateFields as a single atomic write; no
// further locking is layered on top.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByPhone(ctx context.Context, phone string) (models.User, error)
	// FindByEmailOrPhone returns a record matching either field, if any.
	FindByEmailOrPhone(ctx context.Context, email, phone string) (models.User, error)
	FindByEmailVerificationToken(ctx context.Context, token string) (models.User, error)
	FindByPhoneVerificationToken(ctx context.Context, token string) (models.User, error)
	UpdateFields(ctx context.Context, id string, patch UserPatch) (models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// StringPtr is a convenience for building patches.
func StringPtr(s string) *string { return &s }

// BoolPtr is a convenience for building patches.
func BoolPtr(b bool) *bool { return &b }
