package dto

import "github.com/yourusername/userbase/internal/models"

type RegisterRequest struct {
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
}

type SendEmailVerificationRequest struct {
	Email string `json:"email"`
}

type SendPhoneVerificationRequest struct {
	Phone string `json:"phone"`
}

type VerifyPhoneRequest struct {
	Token string `json:"token"`
}

// TokenPair is returned by login and refresh; both values are also set as
// HttpOnly cookies.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type LoginResponse struct {
	TokenPair
	User models.User `json:"user"`
}
