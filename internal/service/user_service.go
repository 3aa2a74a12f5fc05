package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/domain"
	"github.com/prn-tf/fertilizer-advisor/internal/lock"
	"github.com/prn-tf/fertilizer-advisor/internal/pkg/crypto"
	"github.com/prn-tf/fertilizer-advisor/internal/repository"
)

const (
	// signupLockTTL bounds how long a crashed signup can hold a username.
	signupLockTTL        = 30 * time.Second
	signupLockRetryDelay = 25 * time.Millisecond
)

// UserService handles account registration and credential checks.
type UserService struct {
	userRepo repository.UserRepository
	hasher   *crypto.PasswordHasher
	locker   lock.Locker
	lockOpts lock.Options
	logger   zerolog.Logger
}

// NewUserService creates a new UserService.
// lockTimeout is how long a signup waits for a concurrent signup of the same username.
func NewUserService(
	userRepo repository.UserRepository,
	hasher *crypto.PasswordHasher,
	locker lock.Locker,
	lockTimeout time.Duration,
	logger zerolog.Logger,
) *UserService {
	retries := int(lockTimeout / signupLockRetryDelay)
	if retries < 1 {
		retries = 1
	}

	return &UserService{
		userRepo: userRepo,
		hasher:   hasher,
		locker:   locker,
		lockOpts: lock.Options{
			TTL:        signupLockTTL,
			MaxRetries: retries,
			RetryDelay: signupLockRetryDelay,
		},
		logger: logger.With().Str("service", "user").Logger(),
	}
}

// CreateUserInput contains the data needed to create a new user.
type CreateUserInput struct {
	Username string
	Password string
}

// CreateUserOutput contains the result of creating a user.
type CreateUserOutput struct {
	User *domain.User
}

// CreateUser registers a new account.
// Concurrent signups of one username are serialized, and the store's
// unique constraint decides any race the lock does not cover.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*CreateUserOutput, error) {
	if input.Username == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	// Hash outside the lock; bcrypt is the slow part.
	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, crypto.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password must be at most 72 bytes", ErrInvalidInput)
		}
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var (
		user  *domain.User
		inner bool
	)
	err = lock.WithLock(ctx, s.locker, lock.Keys.Signup(input.Username), s.lockOpts, func(ctx context.Context) error {
		inner = true

		exists, err := s.userRepo.ExistsByUsername(ctx, input.Username)
		if err != nil {
			s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to check username existence")
			return storageError(err)
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateUsername, input.Username)
		}

		user = domain.NewUser(input.Username, passwordHash)
		if err := s.userRepo.Create(ctx, user); err != nil {
			if errors.Is(err, domain.ErrUserAlreadyExists) {
				return fmt.Errorf("%w: %s", ErrDuplicateUsername, input.Username)
			}
			s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to create user")
			return storageError(err)
		}
		return nil
	})
	if err != nil {
		if inner {
			return nil, err
		}
		return nil, s.lockError(input.Username, err)
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Msg("user created")

	return &CreateUserOutput{User: user}, nil
}

func (s *UserService) lockError(username string, err error) error {
	switch {
	case errors.Is(err, lock.ErrNotAcquired),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		s.logger.Warn().Err(err).Str("username", username).Msg("signup lock not acquired")
		return fmt.Errorf("%w: signup for %s", ErrLockTimeout, username)
	default:
		s.logger.Error().Err(err).Str("username", username).Msg("signup lock failed")
		return storageError(err)
	}
}

// VerifyCredentials returns the username when password matches the stored hash.
// Unknown users and wrong passwords fail with the same ErrInvalidCredentials.
func (s *UserService) VerifyCredentials(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, repository.ErrNotFound) {
			// Spend the same bcrypt time as a real comparison.
			s.hasher.Verify("", password)
			s.logger.Debug().Str("username", username).Msg("user not found during authentication")
			return "", ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Str("username", username).Msg("failed to get user")
		return "", storageError(err)
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		s.logger.Debug().Str("username", username).Msg("invalid password during authentication")
		return "", ErrInvalidCredentials
	}

	return user.Username, nil
}

// GetByUsername retrieves a user by username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("username", username).Msg("failed to get user")
		return nil, storageError(err)
	}
	return user, nil
}
