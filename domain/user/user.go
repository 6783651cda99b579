// Package user holds the user account and OAuth link records along with
// the password and reset-token rules that apply to them.
package user

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"
)

// Role grants a level of access
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ResetTokenTTL is how long a password reset token stays valid
const ResetTokenTTL = 24 * time.Hour

// User is an identity record. PasswordHash is empty for accounts created
// through an OAuth provider that never set a password.
type User struct {
	UserID                  string     `json:"userId,omitempty"`
	UserName                string     `json:"userName"`
	Email                   string     `json:"email"`
	EmailLower              string     `json:"emailLower"`
	DisplayName             string     `json:"displayName,omitempty"`
	PasswordHash            string     `json:"-"`
	Role                    Role       `json:"role"`
	AvatarURL               string     `json:"avatarUrl,omitempty"`
	PasswordResetToken      string     `json:"passwordResetToken,omitempty"`
	PasswordResetExpiration *time.Time `json:"passwordResetExpiration,omitempty"`
	CreatedAt               time.Time  `json:"createdAt"`
	UpdatedAt               *time.Time `json:"updatedAt,omitempty"`
}

// NormalizeEmail returns the lookup form of an e-mail address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SetEmail sets both the display and lookup forms of the address
func (u *User) SetEmail(email string) {
	u.Email = strings.TrimSpace(email)
	u.EmailLower = NormalizeEmail(email)
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IssueResetToken moves the account into the token-issued state
func (u *User) IssueResetToken(token string, now time.Time) {
	expires := now.Add(ResetTokenTTL)
	u.PasswordResetToken = token
	u.PasswordResetExpiration = &expires
}

// CheckResetToken returns an empty string when token may be consumed at
// now, or the reason it may not.
func (u *User) CheckResetToken(token string, now time.Time) string {
	if u.PasswordResetToken == "" || u.PasswordResetExpiration == nil {
		return "no password reset has been requested"
	}
	if !now.Before(*u.PasswordResetExpiration) {
		return "password reset token has expired"
	}
	if subtle.ConstantTimeCompare([]byte(u.PasswordResetToken), []byte(token)) != 1 {
		return "password reset token is invalid"
	}
	return ""
}

// ClearResetToken returns the account to the no-token state
func (u *User) ClearResetToken() {
	u.PasswordResetToken = ""
	u.PasswordResetExpiration = nil
}

// NewResetToken generates a 64 character alphanumeric token
func NewResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Profile is the public view of a user. It never carries credentials.
type Profile struct {
	UserID      string     `json:"userId"`
	UserName    string     `json:"userName"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName,omitempty"`
	Role        Role       `json:"role"`
	AvatarURL   string     `json:"avatarUrl,omitempty"`
	HasPassword bool       `json:"hasPassword"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// Sanitize strips the password hash and reset token
func (u *User) Sanitize() Profile {
	return Profile{
		UserID:      u.UserID,
		UserName:    u.UserName,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		AvatarURL:   u.AvatarURL,
		HasPassword: u.HasPassword(),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// OAuthLink ties one external provider account to one user
type OAuthLink struct {
	ProviderID string    `json:"providerId"`
	Provider   string    `json:"provider"`
	UserID     string    `json:"userId"`
	Email      string    `json:"email,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// OAuthProfile is what an identity provider reports after a completed handshake
type OAuthProfile struct {
	Provider    string   `json:"provider"`
	ProviderID  string   `json:"providerId"`
	Emails      []string `json:"emails,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	AvatarURL   string   `json:"avatarUrl,omitempty"`
}

// PrimaryEmail returns the first non-blank e-mail the provider reported
func (p OAuthProfile) PrimaryEmail() string {
	for _, e := range p.Emails {
		if strings.TrimSpace(e) != "" {
			return strings.TrimSpace(e)
		}
	}
	return ""
}
