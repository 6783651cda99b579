package handlers

import (
	"context"
	"net/http"

	"bottomtime/application/services"
	"bottomtime/domain/user"
	"bottomtime/interfaces/http/rest/middleware"
	"bottomtime/pkg/common"
	"bottomtime/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AccountService is the part of the user service the handlers use
type AccountService interface {
	SignUp(ctx context.Context, req services.SignUpRequest) (*user.User, error)
	GetByUserName(ctx context.Context, userName string) (*user.User, error)
	UpdateProfile(ctx context.Context, u *user.User, upd services.ProfileUpdate) (*user.User, error)
	ChangePassword(ctx context.Context, u *user.User, oldPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, userNameOrEmail string) error
	PerformPasswordReset(ctx context.Context, userName, token, newPassword string) error
	ListOAuthConnections(ctx context.Context, u *user.User) ([]*user.OAuthLink, error)
	DisconnectOAuth(ctx context.Context, u *user.User, provider string) error
}

// UserHandler handles account requests
type UserHandler struct {
	users    AccountService
	sessions SessionService
	auth     *AuthHandler
	errs     *errors.ErrorHandler
	logger   *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users AccountService, authHandler *AuthHandler, errs *errors.ErrorHandler, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:    users,
		sessions: authHandler.sessions,
		auth:     authHandler,
		errs:     errs,
		logger:   logger,
	}
}

// SignUp handles POST /api/users/. The new user is signed in.
func (h *UserHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req services.SignUpRequest
	if err := common.ParseJSONBody(w, r, &req); err != nil {
		h.errs.Handle(w, r, badBody(err))
		return
	}

	created, err := h.users.SignUp(r.Context(), req)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	result, err := h.sessions.StartSession(r.Context(), created)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	h.auth.setSessionCookie(w, result.Token, result.ExpiresAt)
	common.RespondJSON(w, http.StatusCreated, result)
}

// Get handles GET /api/users/{user}/
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, middleware.TargetUser(r.Context()).Sanitize())
}

// Update handles PATCH /api/users/{user}/
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var upd services.ProfileUpdate
	if err := common.ParseJSONBody(w, r, &upd); err != nil {
		h.errs.Handle(w, r, badBody(err))
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), middleware.TargetUser(r.Context()), upd)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, updated.Sanitize())
}

// ChangePasswordRequest is the body of POST /api/users/{user}/changePassword/
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword handles POST /api/users/{user}/changePassword/
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := common.ParseJSONBody(w, r, &req); err != nil {
		h.errs.Handle(w, r, badBody(err))
		return
	}

	if err := h.users.ChangePassword(r.Context(), middleware.TargetUser(r.Context()), req.OldPassword, req.NewPassword); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// RequestPasswordReset handles POST /api/users/{user}/requestPasswordReset/.
// {user} may be a user name or an e-mail address.
func (h *UserHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	if err := h.users.RequestPasswordReset(r.Context(), chi.URLParam(r, "user")); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// ResetPasswordRequest is the body of POST /api/users/{user}/resetPassword/
type ResetPasswordRequest struct {
	ResetToken  string `json:"resetToken"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword handles POST /api/users/{user}/resetPassword/
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := common.ParseJSONBody(w, r, &req); err != nil {
		h.errs.Handle(w, r, badBody(err))
		return
	}

	err := h.users.PerformPasswordReset(r.Context(), chi.URLParam(r, "user"), req.ResetToken, req.NewPassword)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// ListOAuth handles GET /api/users/{user}/oauth/
func (h *UserHandler) ListOAuth(w http.ResponseWriter, r *http.Request) {
	links, err := h.users.ListOAuthConnections(r.Context(), middleware.TargetUser(r.Context()))
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, links)
}

// DisconnectOAuth handles DELETE /api/users/{user}/oauth/{provider}/
func (h *UserHandler) DisconnectOAuth(w http.ResponseWriter, r *http.Request) {
	err := h.users.DisconnectOAuth(r.Context(), middleware.TargetUser(r.Context()), chi.URLParam(r, "provider"))
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}
