// Package users implements the credential and token operations behind the
// HTTP surface. Every method takes structured request data and returns a
// value or an *apperr.Error; handlers only translate.
package users

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/userbase/internal/apperr"
	"github.com/yourusername/userbase/internal/auth"
	"github.com/yourusername/userbase/internal/models"
	"github.com/yourusername/userbase/internal/models/dto"
	"github.com/yourusername/userbase/internal/storage"
)

// Service wires the user store and token manager together.
//
// No locking happens above the store: two concurrent refreshes for the same
// user race at the row and the last write wins, so the losing pair is
// rejected on its next use. That window is accepted, not worked around.
type Service struct {
	store  storage.UserStore
	tokens *auth.TokenManager
}

// NewService constructs the service.
func NewService(store storage.UserStore, tokens *auth.TokenManager) *Service {
	return &Service{store: store, tokens: tokens}
}

// Register creates a user with a hashed password and fresh verification
// tokens for both channels. Email and phone must be unused.
func (s *Service) Register(ctx context.Context, req dto.RegisterRequest) (models.User, error) {
	email := normalizeEmail(req.Email)
	phone := strings.TrimSpace(req.Phone)
	firstName := normalizeName(req.FirstName)
	lastName := normalizeName(req.LastName)

	if email == "" || phone == "" || firstName == "" || req.Password == "" || req.ConfirmPassword == "" {
		return models.User{}, apperr.BadRequest("email, phone, first name, password, and confirm password are required")
	}
	if req.Password != req.ConfirmPassword {
		return models.User{}, apperr.BadRequestWith("password and confirm password do not match",
			map[string]any{"fields": []string{"password", "confirmPassword"}})
	}

	if _, err := s.store.FindByEmailOrPhone(ctx, email, phone); err == nil {
		return models.User{}, apperr.ConflictWith("user with this email or phone already exists",
			map[string]any{"email": email, "phone": phone})
	} else if !errors.Is(err, storage.ErrNotFound) {
		return models.User{}, apperr.Internal("failed to check existing users", err)
	}

	emailToken, err := auth.NewEmailVerificationToken()
	if err != nil {
		return models.User{}, apperr.Internal("failed to generate verification token", err)
	}
	phoneToken, err := auth.NewPhoneVerificationToken()
	if err != nil {
		return models.User{}, apperr.Internal("failed to generate verification token", err)
	}
	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return models.User{}, apperr.Internal("failed to hash password", err)
	}

	created, err := s.store.CreateUser(ctx, models.User{
		Email:                  email,
		Phone:                  phone,
		FirstName:              firstName,
		LastName:               lastName,
		PasswordHash:           passwordHash,
		EmailVerificationToken: emailToken,
		PhoneVerificationToken: phoneToken,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.User{}, apperr.ConflictWith("user with this email or phone already exists",
				map[string]any{"email": email, "phone": phone})
		}
		return models.User{}, apperr.Internal("failed to create user", err)
	}
	return created, nil
}

// Login checks credentials and issues a token pair, persisting the refresh
// token on the record.
func (s *Service) Login(ctx context.Context, req dto.LoginRequest) (models.User, dto.TokenPair, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return models.User{}, dto.TokenPair{}, apperr.BadRequest("email and password are required")
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, dto.TokenPair{}, apperr.NotFound("user not found")
		}
		return models.User{}, dto.TokenPair{}, apperr.Internal("failed to fetch user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return models.User{}, dto.TokenPair{}, apperr.Unauthorized("invalid credentials")
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return models.User{}, dto.TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh rotates the token pair. The presented token must verify, resolve
// to an existing user, and exactly match the stored value; anything else is
// a rotated or forged session and forces a re-login.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (dto.TokenPair, error) {
	if refreshToken == "" {
		return dto.TokenPair{}, apperr.Unauthorized("unauthorized request")
	}
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return dto.TokenPair{}, apperr.Unauthorized("invalid refresh token")
	}

	user, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return dto.TokenPair{}, apperr.Unauthorized("invalid refresh token")
		}
		return dto.TokenPair{}, apperr.Internal("failed to fetch user", err)
	}
	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		return dto.TokenPair{}, apperr.Unauthorized("refresh token expired, log in again")
	}

	return s.issueTokenPair(ctx, user)
}

// Logout clears the stored refresh token. The access token stays
// cryptographically valid until its own expiry.
func (s *Service) Logout(ctx context.Context, userID string) error {
	_, err := s.store.UpdateFields(ctx, userID, storage.UserPatch{RefreshToken: storage.StringPtr("")})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.Unauthorized("invalid access token")
		}
		return apperr.Internal("failed to log out", err)
	}
	return nil
}

// Authenticate verifies an access token and loads the referenced user.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (models.User, error) {
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return models.User{}, apperr.Unauthorized("invalid access token")
	}
	user, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, apperr.Unauthorized("invalid access token")
		}
		return models.User{}, apperr.Internal("failed to fetch user", err)
	}
	return user, nil
}

// ChangePassword re-hashes and replaces the password after checking the old
// one. Only the hash field is touched.
func (s *Service) ChangePassword(ctx context.Context, userID string, req dto.ChangePasswordRequest) error {
	if req.OldPassword == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		return apperr.BadRequest("old password, new password, and confirm password are required")
	}
	if req.NewPassword != req.ConfirmPassword {
		return apperr.BadRequestWith("new password and confirm password do not match",
			map[string]any{"fields": []string{"newPassword", "confirmPassword"}})
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.Unauthorized("invalid access token")
		}
		return apperr.Internal("failed to fetch user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		return apperr.Unauthorized("invalid credentials")
	}

	passwordHash, err := hashPassword(req.NewPassword)
	if err != nil {
		return apperr.Internal("failed to hash password", err)
	}
	if _, err := s.store.UpdateFields(ctx, userID, storage.UserPatch{PasswordHash: &passwordHash}); err != nil {
		return apperr.Internal("failed to change password", err)
	}
	return nil
}

// UpdateProfile applies a partial update to name and contact fields,
// re-checking email/phone uniqueness against other records.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req dto.UpdateProfileRequest) (models.User, error) {
	var patch storage.UserPatch

	if req.FirstName != nil {
		name := normalizeName(*req.FirstName)
		if name == "" {
			return models.User{}, apperr.BadRequest("first name cannot be empty")
		}
		patch.FirstName = &name
	}
	if req.LastName != nil {
		name := normalizeName(*req.LastName)
		patch.LastName = &name
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email == "" {
			return models.User{}, apperr.BadRequest("email cannot be empty")
		}
		if other, err := s.store.FindByEmail(ctx, email); err == nil && other.ID != userID {
			return models.User{}, apperr.ConflictWith("email already in use", map[string]any{"email": email})
		} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return models.User{}, apperr.Internal("failed to check existing users", err)
		}
		patch.Email = &email
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone == "" {
			return models.User{}, apperr.BadRequest("phone cannot be empty")
		}
		if other, err := s.store.FindByPhone(ctx, phone); err == nil && other.ID != userID {
			return models.User{}, apperr.ConflictWith("phone already in use", map[string]any{"phone": phone})
		} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return models.User{}, apperr.Internal("failed to check existing users", err)
		}
		patch.Phone = &phone
	}

	if patch == (storage.UserPatch{}) {
		return models.User{}, apperr.BadRequest("no profile fields to update")
	}

	updated, err := s.store.UpdateFields(ctx, userID, patch)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return models.User{}, apperr.Unauthorized("invalid access token")
		case errors.Is(err, storage.ErrAlreadyExists):
			// Lost the race with a concurrent registration; the unique
			// index is the final arbiter.
			return models.User{}, apperr.Conflict("email or phone already in use")
		default:
			return models.User{}, apperr.Internal("failed to update profile", err)
		}
	}
	return updated, nil
}

// Delete removes the account permanently.
func (s *Service) Delete(ctx context.Context, userID string) error {
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.Unauthorized("invalid access token")
		}
		return apperr.Internal("failed to delete user", err)
	}
	return nil
}

// SendEmailVerification issues a fresh email token, replacing any
// outstanding one.
func (s *Service) SendEmailVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperr.BadRequest("email is required")
	}
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.Unauthorized("unauthorized")
		}
		return apperr.Internal("failed to fetch user", err)
	}

	token, err := auth.NewEmailVerificationToken()
	if err != nil {
		return apperr.Internal("failed to generate verification token", err)
	}
	if _, err := s.store.UpdateFields(ctx, user.ID, storage.UserPatch{EmailVerificationToken: &token}); err != nil {
		return apperr.Internal("failed to store verification token", err)
	}
	// Delivery is an external collaborator: hand the token to the mailer here.
	return nil
}

// SendPhoneVerification issues a fresh phone token, replacing any
// outstanding one.
func (s *Service) SendPhoneVerification(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return apperr.BadRequest("phone is required")
	}
	user, err := s.store.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.Unauthorized("unauthorized")
		}
		return apperr.Internal("failed to fetch user", err)
	}

	token, err := auth.NewPhoneVerificationToken()
	if err != nil {
		return apperr.Internal("failed to generate verification token", err)
	}
	if _, err := s.store.UpdateFields(ctx, user.ID, storage.UserPatch{PhoneVerificationToken: &token}); err != nil {
		return apperr.Internal("failed to store verification token", err)
	}
	// Delivery is an external collaborator: hand the token to the SMS sender here.
	return nil
}

// VerifyEmail consumes an email verification token: the matching user is
// marked verified and the token is cleared so it cannot be replayed.
func (s *Service) VerifyEmail(ctx context.Context, token string) (models.User, error) {
	return s.consumeVerification(ctx, token, s.store.FindByEmailVerificationToken, storage.UserPatch{
		EmailVerified:          storage.BoolPtr(true),
		EmailVerificationToken: storage.StringPtr(""),
	})
}

// VerifyPhone consumes a phone verification token.
func (s *Service) VerifyPhone(ctx context.Context, token string) (models.User, error) {
	return s.consumeVerification(ctx, token, s.store.FindByPhoneVerificationToken, storage.UserPatch{
		PhoneVerified:          storage.BoolPtr(true),
		PhoneVerificationToken: storage.StringPtr(""),
	})
}

func (s *Service) consumeVerification(ctx context.Context, token string,
	find func(context.Context, string) (models.User, error), patch storage.UserPatch) (models.User, error) {
	if strings.TrimSpace(token) == "" {
		return models.User{}, apperr.BadRequest("token is required")
	}
	user, err := find(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, apperr.Unauthorized("unauthorized")
		}
		return models.User{}, apperr.Internal("failed to fetch user", err)
	}

	updated, err := s.store.UpdateFields(ctx, user.ID, patch)
	if err != nil {
		return models.User{}, apperr.Internal("failed to mark user verified", err)
	}
	return updated, nil
}

// issueTokenPair mints both tokens and persists the refresh token, which
// supersedes any previously issued one.
func (s *Service) issueTokenPair(ctx context.Context, user models.User) (dto.TokenPair, error) {
	accessToken, err := s.tokens.GenerateAccess(user.ID, user.Email)
	if err != nil {
		return dto.TokenPair{}, apperr.Internal("failed to generate token", err)
	}
	refreshToken, err := s.tokens.GenerateRefresh(user.ID)
	if err != nil {
		return dto.TokenPair{}, apperr.Internal("failed to generate token", err)
	}
	if _, err := s.store.UpdateFields(ctx, user.ID, storage.UserPatch{RefreshToken: &refreshToken}); err != nil {
		return dto.TokenPair{}, apperr.Internal("failed to store refresh token", err)
	}
	return dto.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// bcryptCost is part of the stored-hash contract; it must not drift with
// the library default.
const bcryptCost = 10

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
