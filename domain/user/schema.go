package user

import (
	"regexp"

	"bottomtime/domain/validation"
)

// MaxDisplayNameLength matches the displayName rule below
const MaxDisplayNameLength = 100

var baseRules = validation.Rules{
	"UserName":    "required,username,max=50",
	"Email":       "required,email,max=100",
	"EmailLower":  "required,email,max=100",
	"DisplayName": "omitempty,max=100",
	"Role":        "required,oneof=user admin",
	"AvatarURL":   "omitempty,url,max=500",
}

var (
	// CreateSchema validates a new account
	CreateSchema = validation.NewSchema("user.create", []validation.TypeRules{{
		Type: User{},
		Rules: validation.Extend(baseRules, validation.Rules{
			"UserID":             "omitempty,uuid",
			"PasswordResetToken": "isdefault",
		}),
	}})

	// UpdateSchema validates an existing account after changes are applied
	UpdateSchema = validation.NewSchema("user.update", []validation.TypeRules{{
		Type: User{},
		Rules: validation.Extend(baseRules, validation.Rules{
			"UserID":             "required,uuid",
			"PasswordResetToken": "omitempty,len=64,alphanum",
		}),
	}})
)

const MinPasswordLength = 7

var (
	passwordLetter = regexp.MustCompile(`[A-Za-z]`)
	passwordDigit  = regexp.MustCompile(`[0-9]`)
	passwordSymbol = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// CheckPasswordStrength returns the first requirement password fails, or
// an empty string when it is strong enough.
func CheckPasswordStrength(password string) string {
	switch {
	case len(password) < MinPasswordLength:
		return "password must be at least 7 characters long"
	case !passwordLetter.MatchString(password):
		return "password must contain a letter"
	case !passwordDigit.MatchString(password):
		return "password must contain a digit"
	case !passwordSymbol.MatchString(password):
		return "password must contain a character other than a letter or digit"
	}
	return ""
}
