package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/yourusername/userbase/internal/models"
	"github.com/yourusername/userbase/internal/storage"
	"github.com/yourusername/userbase/internal/storage/postgres/migrations"
)

// Ensure Store satisfies the storage.UserStore interface at compile time.
var _ storage.UserStore = (*Store)(nil)

const userColumns = `id, email, phone, first_name, last_name, password_hash,
	email_verified, phone_verified, email_verification_token,
	phone_verification_token, refresh_token, created_at, updated_at`

// Store provides Postgres-backed persistence for users.
type Store struct {
	pool *pgxpool.Pool
}

// NewUserStore connects a pool and applies pending migrations.
func NewUserStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := migrate(ctx, databaseURL); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// migrate runs goose over a throwaway database/sql connection; the pool
// itself stays pgx-native.
func migrate(ctx context.Context, databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// CreateUser inserts a new user row, assigning its id.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	query := fmt.Sprintf(`
		INSERT INTO users (id, email, phone, first_name, last_name, password_hash,
			email_verification_token, phone_verification_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING %s;`, userColumns)

	row := s.pool.QueryRow(ctx, query,
		uuid.NewString(), user.Email, user.Phone, user.FirstName, user.LastName,
		user.PasswordHash, user.EmailVerificationToken, user.PhoneVerificationToken)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return created, nil
}

// FindByID fetches a user by id.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	return s.findByField(ctx, "id", id)
}

// FindByEmail fetches a user by email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findByField(ctx, "email", email)
}

// FindByPhone fetches a user by phone number.
func (s *Store) FindByPhone(ctx context.Context, phone string) (models.User, error) {
	return s.findByField(ctx, "phone", phone)
}

// FindByEmailOrPhone fetches the first user matching either contact field.
func (s *Store) FindByEmailOrPhone(ctx context.Context, email, phone string) (models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1 OR phone = $2 LIMIT 1;`, userColumns)
	return scanUser(s.pool.QueryRow(ctx, query, email, phone))
}

// FindByEmailVerificationToken fetches the user holding the given email token.
// Empty tokens never match: cleared tokens are stored as ''.
func (s *Store) FindByEmailVerificationToken(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, storage.ErrNotFound
	}
	return s.findByField(ctx, "email_verification_token", token)
}

// FindByPhoneVerificationToken fetches the user holding the given phone token.
func (s *Store) FindByPhoneVerificationToken(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, storage.ErrNotFound
	}
	return s.findByField(ctx, "phone_verification_token", token)
}

// UpdateFields applies a partial update to the named fields in one statement.
func (s *Store) UpdateFields(ctx context.Context, id string, patch storage.UserPatch) (models.User, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Phone != nil {
		add("phone", *patch.Phone)
	}
	if patch.FirstName != nil {
		add("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		add("last_name", *patch.LastName)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.EmailVerified != nil {
		add("email_verified", *patch.EmailVerified)
	}
	if patch.PhoneVerified != nil {
		add("phone_verified", *patch.PhoneVerified)
	}
	if patch.EmailVerificationToken != nil {
		add("email_verification_token", *patch.EmailVerificationToken)
	}
	if patch.PhoneVerificationToken != nil {
		add("phone_verification_token", *patch.PhoneVerificationToken)
	}
	if patch.RefreshToken != nil {
		add("refresh_token", *patch.RefreshToken)
	}

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $1 RETURNING %s;`,
		strings.Join(sets, ", "), userColumns)
	updated, err := scanUser(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return updated, nil
}

// DeleteUser removes the row permanently.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) findByField(ctx context.Context, column, value string) (models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1;`, userColumns, column)
	return scanUser(s.pool.QueryRow(ctx, query, value))
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.Phone, &user.FirstName,
		&user.LastName, &user.PasswordHash, &user.EmailVerified, &user.PhoneVerified,
		&user.EmailVerificationToken, &user.PhoneVerificationToken,
		&user.RefreshToken, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
