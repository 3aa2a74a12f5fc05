package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of an issued token.
const DefaultTokenTTL = time.Hour

// Claims is the payload of a session token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Token is a signed session token and its expiry.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenIssuer signs and validates HS256 session tokens.
// It is immutable after construction and safe for concurrent use.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// IssuerOption configures a TokenIssuer.
type IssuerOption func(*TokenIssuer)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *TokenIssuer) {
		i.now = now
	}
}

// NewTokenIssuer creates an issuer signing with secret.
// A non-positive ttl falls back to DefaultTokenTTL.
func NewTokenIssuer(secret string, ttl time.Duration, opts ...IssuerOption) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	issuer := &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(issuer)
	}

	issuer.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(issuer.now),
	)
	return issuer
}

// TTL returns the lifetime of issued tokens.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue returns a token for username expiring TTL from now.
func (i *TokenIssuer) Issue(username string) (Token, error) {
	if username == "" {
		return Token{}, ErrEmptySubject
	}

	now := i.now().UTC()
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("failed to sign token: %w", err)
	}

	// NumericDate has second precision; report what the token actually carries.
	return Token{Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Validate returns the username carried by a well-signed, unexpired token.
// The second result is false for any failure.
func (i *TokenIssuer) Validate(token string) (string, bool) {
	claims, err := i.Parse(token)
	if err != nil {
		return "", false
	}
	return claims.Username, true
}

// Parse verifies token and returns its claims. Every failure wraps ErrInvalidToken.
func (i *TokenIssuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := i.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
