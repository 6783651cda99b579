package handlers

import (
	"context"
	"net/http"
	"time"

	"bottomtime/application/services"
	"bottomtime/domain/user"
	"bottomtime/interfaces/http/rest/middleware"
	"bottomtime/pkg/auth"
	"bottomtime/pkg/common"
	"bottomtime/pkg/errors"

	"go.uber.org/zap"
)

// SessionService is the part of the auth service the handlers use
type SessionService interface {
	Login(ctx context.Context, userNameOrEmail, password string) (*services.LoginResult, error)
	StartSession(ctx context.Context, u *user.User) (*services.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandler handles login and logout
type AuthHandler struct {
	sessions     SessionService
	errs         *errors.ErrorHandler
	secureCookie bool
	logger       *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions SessionService, errs *errors.ErrorHandler, secureCookie bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		errs:         errs,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// LoginRequest is the body of POST /api/auth/login/
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login/
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := common.ParseJSONBody(w, r, &req); err != nil {
		h.errs.Handle(w, r, badBody(err))
		return
	}
	if req.Username == "" || req.Password == "" {
		h.errs.Handle(w, r, errors.NewValidationError("username and password are required", nil))
		return
	}

	result, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	h.setSessionCookie(w, result.Token, result.ExpiresAt)
	common.RespondJSON(w, http.StatusOK, result)
}

// Logout handles POST /api/auth/logout/
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if caller, err := auth.GetUserFromContext(r.Context()); err == nil {
		if err := h.sessions.Logout(r.Context(), caller.SessionID); err != nil {
			h.errs.Handle(w, r, err)
			return
		}
	}

	h.setSessionCookie(w, "", time.Unix(0, 0))
	common.RespondNoContent(w)
}

// Me handles GET /api/auth/me/
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, middleware.CurrentUser(r.Context()).Sanitize())
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// badBody converts a body decoding failure into a validation error
func badBody(err error) error {
	if err == common.ErrEmptyBody {
		return errors.NewValidationError("request body is required", nil)
	}
	return errors.NewValidationError("request body is not valid JSON", err.Error())
}
