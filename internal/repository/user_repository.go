package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dealerlink/internal/domain"

	"github.com/google/uuid"
)

var (
	// ErrUserNotFound wraps domain.ErrNotFound so callers can match either.
	ErrUserNotFound      = fmt.Errorf("user %w", domain.ErrNotFound)
	ErrUserAlreadyExists = errors.New("user with this email already exists")
	ErrPhoneAlreadyUsed  = errors.New("user with this phone number already exists")
)

// UserRepository defines the interface for account data access. The dealer
// finders back the connection directory's phone/key lookup.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindDealerByPhone(ctx context.Context, phone string) (*domain.User, error)
	FindDealerByKey(ctx context.Context, key string) (*domain.User, error)
	UpdateLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error
}

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, password_hash, name, role, phone, address, dealer_key, status, last_seen, created_at, updated_at`

// Create inserts a new user into the database using parameterized queries
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.Phone,
		user.Address,
		nullableKey(user.DealerKey),
		user.Status,
		user.LastSeen,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		// Unique constraint violations surface as SQLSTATE 23505.
		if strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key value") {
			if strings.Contains(err.Error(), "users_phone_key") {
				return ErrPhoneAlreadyUsed
			}
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// FindByEmail retrieves a user by email using parameterized queries
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.queryOne(ctx, query, email)
}

// FindByID retrieves a user by ID using parameterized queries
func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

// FindDealerByPhone retrieves the dealer account publishing the given phone
// number. Accounts with other roles never match.
func (r *userRepository) FindDealerByPhone(ctx context.Context, phone string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1 AND role = $2`
	return r.queryOne(ctx, query, phone, domain.RoleDealer)
}

// FindDealerByKey retrieves the dealer account with the given connect key.
func (r *userRepository) FindDealerByKey(ctx context.Context, key string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE dealer_key = $1 AND role = $2`
	return r.queryOne(ctx, query, key, domain.RoleDealer)
}

// UpdateLastSeen stamps the user's last activity time.
func (r *userRepository) UpdateLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE users SET last_seen = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *userRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*domain.User, error) {
	user := &domain.User{}
	var dealerKey sql.NullString
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.Phone,
		&user.Address,
		&dealerKey,
		&user.Status,
		&user.LastSeen,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user.DealerKey = dealerKey.String
	return user, nil
}

func nullableKey(key string) sql.NullString {
	return sql.NullString{String: key, Valid: key != ""}
}
