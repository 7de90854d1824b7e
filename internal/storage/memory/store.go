// Package memory provides an in-memory UserStore for tests and local runs
// without a database. It mirrors the Postgres store's semantics, including
// uniqueness enforcement and atomic partial updates.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/userbase/internal/models"
	"github.com/yourusername/userbase/internal/storage"
)

var _ storage.UserStore = (*Store)(nil)

// Store keeps user records in a map guarded by a single mutex.
type Store struct {
	mu    sync.Mutex
	users map[string]models.User
}

// NewUserStore returns an empty store.
func NewUserStore() *Store {
	return &Store{users: make(map[string]models.User)}
}

// CreateUser inserts a record, enforcing email/phone uniqueness.
func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email || existing.Phone == user.Phone {
			return models.User{}, storage.ErrAlreadyExists
		}
	}

	now := time.Now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	return user, nil
}

// FindByID fetches a user by id.
func (s *Store) FindByID(_ context.Context, id string) (models.User, error) {
	return s.findOne(func(u models.User) bool { return u.ID == id })
}

// FindByEmail fetches a user by email address.
func (s *Store) FindByEmail(_ context.Context, email string) (models.User, error) {
	return s.findOne(func(u models.User) bool { return u.Email == email })
}

// FindByPhone fetches a user by phone number.
func (s *Store) FindByPhone(_ context.Context, phone string) (models.User, error) {
	return s.findOne(func(u models.User) bool { return u.Phone == phone })
}

// FindByEmailOrPhone fetches a user matching either contact field.
func (s *Store) FindByEmailOrPhone(_ context.Context, email, phone string) (models.User, error) {
	return s.findOne(func(u models.User) bool { return u.Email == email || u.Phone == phone })
}

// FindByEmailVerificationToken fetches the user holding the given email token.
func (s *Store) FindByEmailVerificationToken(_ context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, storage.ErrNotFound
	}
	return s.findOne(func(u models.User) bool { return u.EmailVerificationToken == token })
}

// FindByPhoneVerificationToken fetches the user holding the given phone token.
func (s *Store) FindByPhoneVerificationToken(_ context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, storage.ErrNotFound
	}
	return s.findOne(func(u models.User) bool { return u.PhoneVerificationToken == token })
}

// UpdateFields applies a partial update under the store lock.
func (s *Store) UpdateFields(_ context.Context, id string, patch storage.UserPatch) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}

	if patch.Email != nil || patch.Phone != nil {
		email, phone := user.Email, user.Phone
		if patch.Email != nil {
			email = *patch.Email
		}
		if patch.Phone != nil {
			phone = *patch.Phone
		}
		for _, other := range s.users {
			if other.ID == id {
				continue
			}
			if other.Email == email || other.Phone == phone {
				return models.User{}, storage.ErrAlreadyExists
			}
		}
		user.Email, user.Phone = email, phone
	}
	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.PasswordHash != nil {
		user.PasswordHash = *patch.PasswordHash
	}
	if patch.EmailVerified != nil {
		user.EmailVerified = *patch.EmailVerified
	}
	if patch.PhoneVerified != nil {
		user.PhoneVerified = *patch.PhoneVerified
	}
	if patch.EmailVerificationToken != nil {
		user.EmailVerificationToken = *patch.EmailVerificationToken
	}
	if patch.PhoneVerificationToken != nil {
		user.PhoneVerificationToken = *patch.PhoneVerificationToken
	}
	if patch.RefreshToken != nil {
		user.RefreshToken = *patch.RefreshToken
	}

	user.UpdatedAt = time.Now()
	s.users[id] = user
	return user, nil
}

// DeleteUser removes the record permanently.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) findOne(match func(models.User) bool) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if match(user) {
			return user, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}
