package services

import (
	"context"
	"testing"
	"time"

	"bottomtime/pkg/auth"
	"bottomtime/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthService(t *testing.T, f *fixture, ttl time.Duration) *AuthService {
	t.Helper()
	cfg := auth.JWTConfig{SigningMethod: "HS256", SecretKey: "test-secret", Issuer: "bottomtime-test"}
	generator, err := auth.NewJWTGenerator(cfg)
	require.NoError(t, err)
	validator, err := auth.NewJWTValidator(cfg)
	require.NoError(t, err)
	return NewAuthService(f.users, f.sessions, f.hasher, generator, validator, nil, ttl, zap.NewNop())
}

func TestAuthService_LoginAuthenticateLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newAuthService(t, f, time.Hour)
	u := f.seedUser(t, "jacques", "Calyps0!")

	result, err := svc.Login(ctx, "jacques@EXAMPLE.com", "Calyps0!")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, u.UserID, result.User.UserID)

	authed, session, err := svc.Authenticate(ctx, "Bearer "+result.Token)
	require.NoError(t, err)
	assert.Equal(t, u.UserID, authed.UserID)

	require.NoError(t, svc.Logout(ctx, session.SessionID))
	require.NoError(t, svc.Logout(ctx, session.SessionID))

	_, _, err = svc.Authenticate(ctx, result.Token)
	assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)
}

func TestAuthService_LoginFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newAuthService(t, f, time.Hour)
	f.seedUser(t, "jacques", "Calyps0!")
	f.seedUser(t, "oauthonly", "")

	tests := []struct {
		name     string
		login    string
		password string
	}{
		{"wrong password", "jacques", "nope"},
		{"unknown user", "philippe", "Calyps0!"},
		{"account without password", "oauthonly", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.login, tt.password)
			assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)
		})
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newAuthService(t, f, time.Hour)
	f.seedUser(t, "jacques", "Calyps0!")

	t.Run("garbage token", func(t *testing.T) {
		_, _, err := svc.Authenticate(ctx, "not-a-token")
		assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)
	})

	t.Run("expired session", func(t *testing.T) {
		result, err := svc.Login(ctx, "jacques", "Calyps0!")
		require.NoError(t, err)

		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { svc.now = time.Now }()

		_, _, err = svc.Authenticate(ctx, result.Token)
		assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)
	})
}
