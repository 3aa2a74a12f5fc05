package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/auth"
)

// AuthService composes the credential store and the token issuer
// into the signup and login flows.
type AuthService struct {
	users    *UserService
	issuer   *auth.TokenIssuer
	recorder OutcomeRecorder
	logger   zerolog.Logger
}

// NewAuthService creates a new AuthService. recorder may be nil.
func NewAuthService(users *UserService, issuer *auth.TokenIssuer, recorder OutcomeRecorder, logger zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		issuer:   issuer,
		recorder: recorderOrNop(recorder),
		logger:   logger.With().Str("service", "auth").Logger(),
	}
}

// SignupInput contains signup request data.
type SignupInput struct {
	Username string
	Password string
}

// Signup registers a new account.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) error {
	_, err := s.users.CreateUser(ctx, CreateUserInput(input))
	s.recorder.RecordSignup(err == nil)
	return err
}

// LoginInput contains login request data.
type LoginInput struct {
	Username string
	Password string
}

// LoginOutput contains an issued session token.
type LoginOutput struct {
	Username  string
	Token     string
	ExpiresAt time.Time
}

// Login verifies credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	username, err := s.users.VerifyCredentials(ctx, input.Username, input.Password)
	if err != nil {
		s.recorder.RecordLogin(false)
		return nil, err
	}

	token, err := s.issuer.Issue(username)
	if err != nil {
		s.recorder.RecordLogin(false)
		s.logger.Error().Err(err).Str("username", username).Msg("failed to issue token")
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.recorder.RecordLogin(true)
	s.logger.Info().Str("username", username).Time("expires_at", token.ExpiresAt).Msg("user logged in")

	return &LoginOutput{
		Username:  username,
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// CurrentUser returns the username carried by a valid token.
func (s *AuthService) CurrentUser(token string) (string, error) {
	username, ok := s.issuer.Validate(token)
	if !ok {
		return "", ErrInvalidToken
	}
	return username, nil
}

// Validate satisfies auth.Validator so the service can back the bearer middleware.
func (s *AuthService) Validate(token string) (string, bool) {
	return s.issuer.Validate(token)
}
