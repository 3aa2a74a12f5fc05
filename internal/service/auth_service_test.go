package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/fertilizer-advisor/internal/auth"
)

func newTestAuthService(t *testing.T, recorder OutcomeRecorder) (*AuthService, *auth.TokenIssuer) {
	t.Helper()
	users := newTestUserService(t, NewMockUserRepository(), nil)
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	return NewAuthService(users, issuer, recorder, zerolog.Nop()), issuer
}

func TestAuthService_SignupAndLogin(t *testing.T) {
	recorder := newRecordingRecorder()
	svc, issuer := newTestAuthService(t, recorder)
	ctx := context.Background()

	require.NoError(t, svc.Signup(ctx, SignupInput{Username: "alice", Password: "s3cret"}))
	require.ErrorIs(t, svc.Signup(ctx, SignupInput{Username: "alice", Password: "s3cret"}), ErrDuplicateUsername)

	out, err := svc.Login(ctx, LoginInput{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	require.Equal(t, "alice", out.Username)
	require.NotEmpty(t, out.Token)
	require.WithinDuration(t, time.Now().Add(time.Hour), out.ExpiresAt, 5*time.Second)

	username, ok := issuer.Validate(out.Token)
	require.True(t, ok)
	require.Equal(t, "alice", username)

	_, err = svc.Login(ctx, LoginInput{Username: "alice", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.Equal(t, 1, recorder.signups[true])
	require.Equal(t, 1, recorder.signups[false])
	require.Equal(t, 1, recorder.logins[true])
	require.Equal(t, 1, recorder.logins[false])
}

func TestAuthService_CurrentUser(t *testing.T) {
	svc, issuer := newTestAuthService(t, nil)

	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	username, err := svc.CurrentUser(token.Value)
	require.NoError(t, err)
	require.Equal(t, "alice", username)

	_, err = svc.CurrentUser("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)

	other := auth.NewTokenIssuer("other-secret", time.Hour)
	forged, err := other.Issue("alice")
	require.NoError(t, err)
	_, err = svc.CurrentUser(forged.Value)
	require.ErrorIs(t, err, ErrInvalidToken)
}
