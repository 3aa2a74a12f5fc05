package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong indicates the password exceeds bcrypt's 72 byte input limit.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	cost int

	// dummyHash is compared against when no stored hash exists,
	// so unknown usernames cost the same time as wrong passwords.
	dummyHash []byte
}

// NewPasswordHasher creates a hasher with the given bcrypt cost.
// Costs outside bcrypt's range fall back to bcrypt.DefaultCost.
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("fertilizer-advisor-dummy"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	return &PasswordHasher{cost: cost, dummyHash: dummy}, nil
}

// Cost returns the bcrypt work factor in use.
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash returns the salted bcrypt hash of password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash.
// An empty hash is compared against a dummy so the call takes the usual time.
func (h *PasswordHasher) Verify(hash, password string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
