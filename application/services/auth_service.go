package services

import (
	"context"
	"fmt"
	"time"

	"bottomtime/application/ports"
	"bottomtime/domain/user"
	"bottomtime/pkg/auth"
	"bottomtime/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LoginResult is returned by a successful login
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      user.Profile `json:"user"`
}

// AuthService manages server-side login sessions
type AuthService struct {
	users     ports.UserRepository
	sessions  ports.SessionStore
	hasher    ports.PasswordHasher
	generator *auth.JWTGenerator
	validator *auth.JWTValidator
	metrics   ports.Metrics
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	users ports.UserRepository,
	sessions ports.SessionStore,
	hasher ports.PasswordHasher,
	generator *auth.JWTGenerator,
	validator *auth.JWTValidator,
	metrics ports.Metrics,
	ttl time.Duration,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		hasher:    hasher,
		generator: generator,
		validator: validator,
		metrics:   metrics,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// Login verifies credentials and opens a session. Every failure is
// reported the same way so callers cannot discover accounts.
func (s *AuthService) Login(ctx context.Context, userNameOrEmail, password string) (*LoginResult, error) {
	u, err := s.users.GetByUserName(ctx, userNameOrEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		u, err = s.users.GetByEmail(ctx, user.NormalizeEmail(userNameOrEmail))
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
	}

	if u == nil || !u.HasPassword() || s.hasher.Compare(u.PasswordHash, password) != nil {
		s.recordLoginFailure(ctx)
		return nil, errors.NewAuthenticationFailedError("user name or password is incorrect")
	}

	return s.StartSession(ctx, u)
}

// StartSession opens a session for an already authenticated user
func (s *AuthService) StartSession(ctx context.Context, u *user.User) (*LoginResult, error) {
	now := s.now().UTC()
	session := &user.Session{
		SessionID: uuid.NewString(),
		UserID:    u.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.generator.GenerateToken(u.UserID, string(u.Role), session.SessionID, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	s.logger.Debug("Session started", zap.String("userID", u.UserID), zap.String("sessionID", session.SessionID))
	if s.metrics != nil {
		s.metrics.RecordCount(ctx, "Logins", nil)
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      u.Sanitize(),
	}, nil
}

// Authenticate resolves a session token to its session and user
func (s *AuthService) Authenticate(ctx context.Context, token string) (*user.User, *user.Session, error) {
	claims, err := s.validator.ValidateToken(token)
	if err != nil {
		return nil, nil, errors.NewAuthenticationFailedError(err.Error())
	}

	session, err := s.sessions.Get(ctx, claims.SessionID())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil || session.Expired(s.now()) || session.UserID != claims.UserID {
		return nil, nil, errors.NewAuthenticationFailedError("session has ended")
	}

	u, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, nil, errors.NewAuthenticationFailedError("session user no longer exists")
	}

	return u, session, nil
}

// Logout ends a session. Ending an unknown session succeeds.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *AuthService) recordLoginFailure(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.RecordCount(ctx, "LoginFailures", nil)
	}
}
