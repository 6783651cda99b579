package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bottomtime/application/ports"
	"bottomtime/domain/events"
	"bottomtime/domain/user"
	"bottomtime/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SignUpRequest is the input for creating a password account
type SignUpRequest struct {
	UserName    string `json:"userName"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Password    string `json:"password"`
}

// ProfileUpdate carries the profile fields a user may change. Nil fields
// are left as they are.
type ProfileUpdate struct {
	UserName    *string `json:"userName,omitempty"`
	Email       *string `json:"email,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
}

// UserService applies account rules: uniqueness, password policy, the
// password reset state machine and OAuth linking
type UserService struct {
	users     ports.UserRepository
	oauth     ports.OAuthRepository
	hasher    ports.PasswordHasher
	publisher ports.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewUserService creates a new user service
func NewUserService(
	users ports.UserRepository,
	oauth ports.OAuthRepository,
	hasher ports.PasswordHasher,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		users:     users,
		oauth:     oauth,
		hasher:    hasher,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// SignUp creates an account with a password
func (s *UserService) SignUp(ctx context.Context, req SignUpRequest) (*user.User, error) {
	candidate := &user.User{
		UserName:    strings.TrimSpace(req.UserName),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Role:        user.RoleUser,
	}
	candidate.SetEmail(req.Email)
	if candidate.DisplayName == "" {
		candidate.DisplayName = candidate.UserName
	}

	if violations := user.CreateSchema.Validate(candidate); violations != nil {
		return nil, errors.NewValidationError("account details failed validation", violations)
	}
	if requirement := user.CheckPasswordStrength(req.Password); requirement != "" {
		return nil, errors.NewWeakPasswordError(requirement)
	}
	if err := s.ensureUserNameFree(ctx, candidate.UserName, ""); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, candidate.EmailLower, ""); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	candidate.PasswordHash = hash

	created, err := s.users.Create(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User signed up", zap.String("userID", created.UserID), zap.String("userName", created.UserName))
	publishEvent(ctx, s.publisher, s.logger,
		events.NewUserSignedUp(created.UserID, created.UserName, created.Email, "", s.now()))

	return created, nil
}

// GetByUserName returns the user or nil
func (s *UserService) GetByUserName(ctx context.Context, userName string) (*user.User, error) {
	u, err := s.users.GetByUserName(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByID returns the user or nil
func (s *UserService) GetByID(ctx context.Context, userID string) (*user.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// UpdateProfile applies upd to u and returns the saved user
func (s *UserService) UpdateProfile(ctx context.Context, u *user.User, upd ProfileUpdate) (*user.User, error) {
	updated := *u
	if upd.UserName != nil {
		updated.UserName = strings.TrimSpace(*upd.UserName)
	}
	if upd.Email != nil {
		updated.SetEmail(*upd.Email)
	}
	if upd.DisplayName != nil {
		updated.DisplayName = strings.TrimSpace(*upd.DisplayName)
	}
	if upd.AvatarURL != nil {
		updated.AvatarURL = strings.TrimSpace(*upd.AvatarURL)
	}

	if violations := user.UpdateSchema.Validate(&updated); violations != nil {
		return nil, errors.NewValidationError("profile failed validation", violations)
	}
	if updated.UserName != u.UserName {
		if err := s.ensureUserNameFree(ctx, updated.UserName, u.UserID); err != nil {
			return nil, err
		}
	}
	if updated.EmailLower != u.EmailLower {
		if err := s.ensureEmailFree(ctx, updated.EmailLower, u.UserID); err != nil {
			return nil, err
		}
	}

	if err := s.users.Save(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	return &updated, nil
}

// ChangePassword replaces u's password. When u already has a password,
// oldPassword must match it.
func (s *UserService) ChangePassword(ctx context.Context, u *user.User, oldPassword, newPassword string) error {
	if u.HasPassword() {
		if err := s.hasher.Compare(u.PasswordHash, oldPassword); err != nil {
			return errors.NewBadPasswordError()
		}
	}
	return s.setPassword(ctx, u, newPassword, false)
}

// RequestPasswordReset issues a reset token to the account matching
// userNameOrEmail. The token reaches the user through the published event.
func (s *UserService) RequestPasswordReset(ctx context.Context, userNameOrEmail string) error {
	u, err := s.lookup(ctx, userNameOrEmail)
	if err != nil {
		return err
	}
	if u == nil {
		return errors.NewNoSuchUserError(userNameOrEmail)
	}

	token, err := user.NewResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	now := s.now()
	updated := *u
	updated.IssueResetToken(token, now)
	if err := s.users.Save(ctx, &updated); err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}

	s.logger.Info("Password reset requested", zap.String("userID", u.UserID))
	publishEvent(ctx, s.publisher, s.logger, events.NewPasswordResetRequested(
		updated.UserID, updated.UserName, updated.Email, token, *updated.PasswordResetExpiration, now))

	return nil
}

// PerformPasswordReset consumes a reset token and sets a new password.
// Any rejection leaves the account untouched.
func (s *UserService) PerformPasswordReset(ctx context.Context, userName, token, newPassword string) error {
	u, err := s.GetByUserName(ctx, userName)
	if err != nil {
		return err
	}
	if u == nil {
		return errors.NewNoSuchUserError(userName)
	}

	if reason := u.CheckResetToken(token, s.now()); reason != "" {
		return errors.NewRejectedPasswordResetError(reason)
	}
	return s.setPassword(ctx, u, newPassword, true)
}

// LoginWithOAuth resolves a provider profile to a user, creating the
// account and link on first login
func (s *UserService) LoginWithOAuth(ctx context.Context, profile user.OAuthProfile) (*user.User, error) {
	if err := checkOAuthProfile(profile); err != nil {
		return nil, err
	}

	link, err := s.oauth.Get(ctx, profile.Provider, profile.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth link: %w", err)
	}
	if link != nil {
		u, err := s.GetByID(ctx, link.UserID)
		if err != nil {
			return nil, err
		}
		if u != nil {
			return u, nil
		}
		// left behind by a sign-up whose user write failed
		s.logger.Warn("Removing oauth link to a missing user",
			zap.String("provider", link.Provider),
			zap.String("userID", link.UserID),
		)
		if err := s.oauth.Delete(ctx, link.Provider, link.ProviderID); err != nil {
			return nil, fmt.Errorf("failed to delete stale oauth link: %w", err)
		}
	}

	email := profile.PrimaryEmail()
	if email == "" {
		return nil, errors.NewMissingEmailError(profile.Provider)
	}
	existing, err := s.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to check e-mail: %w", err)
	}
	if existing != nil {
		return nil, errors.NewEmailInUseError(email)
	}

	userName, err := s.availableUserName(ctx, email)
	if err != nil {
		return nil, err
	}

	candidate := &user.User{
		UserID:      uuid.NewString(),
		UserName:    userName,
		DisplayName: strings.TrimSpace(profile.DisplayName),
		AvatarURL:   strings.TrimSpace(profile.AvatarURL),
		Role:        user.RoleUser,
	}
	candidate.SetEmail(email)
	if candidate.DisplayName == "" {
		candidate.DisplayName = userName
	}
	dropInvalidProfileFields(candidate)
	if violations := user.CreateSchema.Validate(candidate); violations != nil {
		return nil, errors.NewValidationError("oauth profile failed validation", violations)
	}

	// Link before user; a link left without its user is removed on the next login.
	if err := s.oauth.Create(ctx, s.newLink(candidate.UserID, profile, email)); err != nil {
		return nil, fmt.Errorf("failed to create oauth link: %w", err)
	}
	created, err := s.users.Create(ctx, candidate)
	if err != nil {
		if delErr := s.oauth.Delete(ctx, profile.Provider, profile.ProviderID); delErr != nil {
			s.logger.Error("Failed to roll back oauth link",
				zap.String("provider", profile.Provider),
				zap.String("userID", candidate.UserID),
				zap.Error(delErr),
			)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User signed up through oauth",
		zap.String("userID", created.UserID),
		zap.String("provider", profile.Provider),
	)
	publishEvent(ctx, s.publisher, s.logger,
		events.NewUserSignedUp(created.UserID, created.UserName, created.Email, profile.Provider, s.now()))

	return created, nil
}

// ConnectOAuth links a provider account to an existing user
func (s *UserService) ConnectOAuth(ctx context.Context, u *user.User, profile user.OAuthProfile) (*user.OAuthLink, error) {
	if err := checkOAuthProfile(profile); err != nil {
		return nil, err
	}

	existing, err := s.oauth.Get(ctx, profile.Provider, profile.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth link: %w", err)
	}
	if existing != nil {
		return nil, errors.NewForbiddenActionError("this provider account is already connected to a user")
	}

	links, err := s.oauth.ListByUser(ctx, u.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list oauth links: %w", err)
	}
	for _, l := range links {
		if l.Provider == profile.Provider {
			return nil, errors.NewForbiddenActionError(fmt.Sprintf("user already has a %s connection", profile.Provider))
		}
	}

	link := s.newLink(u.UserID, profile, profile.PrimaryEmail())
	if err := s.oauth.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to create oauth link: %w", err)
	}
	return link, nil
}

// ListOAuthConnections returns every provider account linked to u
func (s *UserService) ListOAuthConnections(ctx context.Context, u *user.User) ([]*user.OAuthLink, error) {
	links, err := s.oauth.ListByUser(ctx, u.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list oauth links: %w", err)
	}
	if links == nil {
		links = []*user.OAuthLink{}
	}
	return links, nil
}

// DisconnectOAuth removes u's link to provider. The last link of an account
// without a password cannot be removed.
func (s *UserService) DisconnectOAuth(ctx context.Context, u *user.User, provider string) error {
	links, err := s.oauth.ListByUser(ctx, u.UserID)
	if err != nil {
		return fmt.Errorf("failed to list oauth links: %w", err)
	}

	var target *user.OAuthLink
	for _, l := range links {
		if l.Provider == provider {
			target = l
			break
		}
	}
	if target == nil {
		return errors.NewNotFoundError(fmt.Sprintf("%s connection", provider))
	}
	if len(links) == 1 && !u.HasPassword() {
		return errors.NewForbiddenActionError("cannot remove the only sign-in method of an account without a password")
	}

	if err := s.oauth.Delete(ctx, target.Provider, target.ProviderID); err != nil {
		return fmt.Errorf("failed to delete oauth link: %w", err)
	}
	return nil
}

func (s *UserService) setPassword(ctx context.Context, u *user.User, password string, clearReset bool) error {
	if requirement := user.CheckPasswordStrength(password); requirement != "" {
		return errors.NewWeakPasswordError(requirement)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	updated := *u
	updated.PasswordHash = hash
	if clearReset {
		updated.ClearResetToken()
	}
	if err := s.users.Save(ctx, &updated); err != nil {
		return fmt.Errorf("failed to save password: %w", err)
	}
	return nil
}

// lookup finds a user by user name first, then by e-mail
func (s *UserService) lookup(ctx context.Context, userNameOrEmail string) (*user.User, error) {
	u, err := s.users.GetByUserName(ctx, userNameOrEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u != nil {
		return u, nil
	}
	u, err = s.users.GetByEmail(ctx, user.NormalizeEmail(userNameOrEmail))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *UserService) ensureUserNameFree(ctx context.Context, userName, selfID string) error {
	existing, err := s.users.GetByUserName(ctx, userName)
	if err != nil {
		return fmt.Errorf("failed to check user name: %w", err)
	}
	if existing != nil && existing.UserID != selfID {
		return errors.NewUsernameTakenError(userName)
	}
	return nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, emailLower, selfID string) error {
	existing, err := s.users.GetByEmail(ctx, emailLower)
	if err != nil {
		return fmt.Errorf("failed to check e-mail: %w", err)
	}
	if existing != nil && existing.UserID != selfID {
		return errors.NewEmailInUseError(emailLower)
	}
	return nil
}

var userNameStrip = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

const maxUserNameAttempts = 50

// availableUserName derives a free user name from the local part of email
func (s *UserService) availableUserName(ctx context.Context, email string) (string, error) {
	base := email
	if at := strings.IndexByte(base, '@'); at >= 0 {
		base = base[:at]
	}
	base = userNameStrip.ReplaceAllString(base, "")
	if len(base) > 40 {
		base = base[:40]
	}
	if base == "" {
		base = "diver"
	}

	candidate := base
	for i := 1; i <= maxUserNameAttempts; i++ {
		existing, err := s.users.GetByUserName(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check user name: %w", err)
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
	return base + "-" + uuid.NewString()[:8], nil
}

// dropInvalidProfileFields clears or shortens optional provider-supplied
// fields that the account rules would reject
func dropInvalidProfileFields(u *user.User) {
	for _, v := range user.CreateSchema.Validate(u) {
		switch v.Field {
		case "avatarUrl":
			u.AvatarURL = ""
		case "displayName":
			u.DisplayName = truncateRunes(u.DisplayName, user.MaxDisplayNameLength)
		}
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

func (s *UserService) newLink(userID string, profile user.OAuthProfile, email string) *user.OAuthLink {
	return &user.OAuthLink{
		ProviderID: profile.ProviderID,
		Provider:   profile.Provider,
		UserID:     userID,
		Email:      email,
		CreatedAt:  s.now().UTC(),
	}
}

func checkOAuthProfile(profile user.OAuthProfile) error {
	if profile.Provider == "" || profile.ProviderID == "" {
		return errors.NewValidationError("oauth profile is incomplete", "provider and providerId are required")
	}
	return nil
}
