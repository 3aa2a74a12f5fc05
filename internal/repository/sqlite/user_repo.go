package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/prn-tf/fertilizer-advisor/internal/domain"
	"github.com/prn-tf/fertilizer-advisor/internal/repository"
)

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (username, password_hash, created_at)
		VALUES (?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Username,
		user.PasswordHash,
		user.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("%w: failed to create user: %v", repository.ErrUnavailable, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: failed to get last insert ID: %v", repository.ErrUnavailable, err)
	}
	user.ID = id

	return nil
}

// GetByUsername retrieves a user by username.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = ?
	`

	user := &domain.User{}
	var createdAt string

	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&createdAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: failed to get user by username: %v", repository.ErrUnavailable, err)
	}

	user.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	return user, nil
}

// ExistsByUsername checks if a user with the given username exists.
func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: failed to check username: %v", repository.ErrUnavailable, err)
	}
	return exists != 0, nil
}

// Count returns the number of registered users.
func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count users: %v", repository.ErrUnavailable, err)
	}
	return count, nil
}

// Ensure userRepository implements repository.UserRepository
var _ repository.UserRepository = (*userRepository)(nil)
