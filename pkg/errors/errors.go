package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// Kind identifies the category of a failure raised by the business rule layer
type Kind int

const (
	// KindInternal is the zero value: anything unrecognized is a server error
	KindInternal Kind = iota
	KindValidation
	KindForbiddenAction
	KindEmailInUse
	KindUsernameTaken
	KindMissingEmail
	KindBadPassword
	KindWeakPassword
	KindRejectedPasswordReset
	KindNoSuchUser
	KindNotFound
	KindAuthenticationFailed
	KindNotAuthorized
	KindRateLimited
)

var kindNames = map[Kind]string{
	KindInternal:              "INTERNAL",
	KindValidation:            "VALIDATION",
	KindForbiddenAction:       "FORBIDDEN_ACTION",
	KindEmailInUse:            "EMAIL_IN_USE",
	KindUsernameTaken:         "USERNAME_TAKEN",
	KindMissingEmail:          "MISSING_EMAIL",
	KindBadPassword:           "BAD_PASSWORD",
	KindWeakPassword:          "WEAK_PASSWORD",
	KindRejectedPasswordReset: "REJECTED_PASSWORD_RESET",
	KindNoSuchUser:            "NO_SUCH_USER",
	KindNotFound:              "NOT_FOUND",
	KindAuthenticationFailed:  "AUTHENTICATION_FAILED",
	KindNotAuthorized:         "NOT_AUTHORIZED",
	KindRateLimited:           "RATE_LIMITED",
}

// String returns the upper-case name of the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KIND(%d)", int(k))
}

// Sentinels for errors.Is checks. They match any AppError of the same kind.
var (
	ErrValidation            = &AppError{Kind: KindValidation}
	ErrForbiddenAction       = &AppError{Kind: KindForbiddenAction}
	ErrEmailInUse            = &AppError{Kind: KindEmailInUse}
	ErrUsernameTaken         = &AppError{Kind: KindUsernameTaken}
	ErrMissingEmail          = &AppError{Kind: KindMissingEmail}
	ErrBadPassword           = &AppError{Kind: KindBadPassword}
	ErrWeakPassword          = &AppError{Kind: KindWeakPassword}
	ErrRejectedPasswordReset = &AppError{Kind: KindRejectedPasswordReset}
	ErrNoSuchUser            = &AppError{Kind: KindNoSuchUser}
	ErrNotFound              = &AppError{Kind: KindNotFound}
	ErrAuthenticationFailed  = &AppError{Kind: KindAuthenticationFailed}
	ErrNotAuthorized         = &AppError{Kind: KindNotAuthorized}
	ErrRateLimited           = &AppError{Kind: KindRateLimited}
)

// AppError represents an application-specific error
type AppError struct {
	Kind       Kind        `json:"kind"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	Cause      error       `json:"-"`
	StackTrace string      `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError of the same kind
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithDetails attaches structured details
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := ""
	for {
		frame, more := frames.Next()
		stack += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return stack
}

func newError(kind Kind, message string) *AppError {
	return &AppError{
		Kind:       kind,
		Message:    message,
		StackTrace: captureStackTrace(),
	}
}

// Constructor functions

// NewValidationError creates a validation error carrying the violation list
func NewValidationError(message string, details interface{}) *AppError {
	return newError(KindValidation, message).WithDetails(details)
}

// NewForbiddenActionError creates an error for attempts to set server-owned fields
func NewForbiddenActionError(message string) *AppError {
	if message == "" {
		message = "forbidden action"
	}
	return newError(KindForbiddenAction, message)
}

// NewEmailInUseError reports an e-mail address already bound to another account
func NewEmailInUseError(email string) *AppError {
	return newError(KindEmailInUse, fmt.Sprintf("e-mail address %q is already in use", email))
}

// NewUsernameTakenError reports a user name already bound to another account
func NewUsernameTakenError(userName string) *AppError {
	return newError(KindUsernameTaken, fmt.Sprintf("user name %q is already taken", userName))
}

// NewMissingEmailError reports an OAuth profile without any e-mail address
func NewMissingEmailError(provider string) *AppError {
	return newError(KindMissingEmail, fmt.Sprintf("%s profile did not provide an e-mail address", provider))
}

// NewBadPasswordError reports an old-password mismatch
func NewBadPasswordError() *AppError {
	return newError(KindBadPassword, "old password is incorrect")
}

// NewWeakPasswordError reports a password failing the strength policy
func NewWeakPasswordError(requirement string) *AppError {
	return newError(KindWeakPassword, "password does not meet strength requirements").WithDetails(requirement)
}

// NewRejectedPasswordResetError reports a bad, expired or absent reset token
func NewRejectedPasswordResetError(reason string) *AppError {
	return newError(KindRejectedPasswordReset, "password reset rejected").WithDetails(reason)
}

// NewNoSuchUserError reports a missing user
func NewNoSuchUserError(identifier string) *AppError {
	return newError(KindNoSuchUser, fmt.Sprintf("user %q does not exist", identifier))
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newError(KindNotFound, fmt.Sprintf("%s not found", resource))
}

// NewAuthenticationFailedError creates an authentication failure
func NewAuthenticationFailedError(message string) *AppError {
	if message == "" {
		message = "authentication failed"
	}
	return newError(KindAuthenticationFailed, message)
}

// NewNotAuthorizedError creates an authorization failure
func NewNotAuthorizedError(message string) *AppError {
	if message == "" {
		message = "not authorized"
	}
	return newError(KindNotAuthorized, message)
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(limit int, window string) *AppError {
	return newError(KindRateLimited, fmt.Sprintf("rate limit exceeded: %d requests per %s", limit, window))
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newError(KindInternal, message)
}

// Helper functions

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// KindOf returns the kind of err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Kind
	}
	return KindInternal
}

// Status describes how a kind is rendered over HTTP
type Status struct {
	HTTPStatus int
	ErrorID    int
	Title      string
}

var statuses = map[Kind]Status{
	KindValidation:            {http.StatusBadRequest, 1000, "invalid input"},
	KindWeakPassword:          {http.StatusBadRequest, 1000, "invalid input"},
	KindMissingEmail:          {http.StatusBadRequest, 1000, "invalid input"},
	KindUsernameTaken:         {http.StatusConflict, 1010, "user name taken"},
	KindEmailInUse:            {http.StatusConflict, 1020, "e-mail address taken"},
	KindInternal:              {http.StatusInternalServerError, 2000, "server error"},
	KindNotFound:              {http.StatusNotFound, 2100, "resource not found"},
	KindNoSuchUser:            {http.StatusNotFound, 2100, "resource not found"},
	KindAuthenticationFailed:  {http.StatusUnauthorized, 3000, "authentication failed"},
	KindBadPassword:           {http.StatusForbidden, 3000, "authentication failed"},
	KindNotAuthorized:         {http.StatusForbidden, 3100, "not authorized"},
	KindForbiddenAction:       {http.StatusForbidden, 3200, "forbidden action"},
	KindRejectedPasswordReset: {http.StatusForbidden, 3200, "forbidden action"},
	KindRateLimited:           {http.StatusTooManyRequests, 3300, "too many requests"},
}

// StatusOf maps an error to its HTTP status and errorId
func StatusOf(err error) Status {
	if s, ok := statuses[KindOf(err)]; ok {
		return s
	}
	return statuses[KindInternal]
}
