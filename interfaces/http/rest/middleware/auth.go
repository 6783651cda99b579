package middleware

import (
	"context"
	"net/http"
	"strings"

	"bottomtime/domain/user"
	"bottomtime/pkg/auth"
	"bottomtime/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionCookie carries the session token for browser clients
const SessionCookie = "bottomtime.sid"

// Authenticator resolves a session token to its user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*user.User, *user.Session, error)
}

// UserLookup finds the user named in a route
type UserLookup interface {
	GetByUserName(ctx context.Context, userName string) (*user.User, error)
}

type ctxKey int

const (
	currentUserKey ctxKey = iota
	targetUserKey
)

// CurrentUser returns the signed-in user, or nil for anonymous requests
func CurrentUser(ctx context.Context) *user.User {
	u, _ := ctx.Value(currentUserKey).(*user.User)
	return u
}

// TargetUser returns the user resolved from the {user} route parameter
func TargetUser(ctx context.Context) *user.User {
	u, _ := ctx.Value(targetUserKey).(*user.User)
	return u
}

// WithCurrentUser stores the signed-in user on ctx
func WithCurrentUser(ctx context.Context, u *user.User, session *user.Session) context.Context {
	ctx = context.WithValue(ctx, currentUserKey, u)
	return auth.SetUserInContext(ctx, &auth.UserContext{
		UserID:    u.UserID,
		UserName:  u.UserName,
		Role:      string(u.Role),
		SessionID: session.SessionID,
	})
}

// LoadSession attaches the signed-in user to the request when it carries a
// valid session token. Requests without one continue anonymously.
func LoadSession(authn Authenticator, errs *errors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			u, session, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				if errors.KindOf(err) == errors.KindAuthenticationFailed {
					logger.Debug("Ignoring invalid session token",
						zap.String("path", r.URL.Path),
						zap.Error(err),
					)
					next.ServeHTTP(w, r)
					return
				}
				errs.Handle(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCurrentUser(r.Context(), u, session)))
		})
	}
}

// RequireSession rejects anonymous requests
func RequireSession(errs *errors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if CurrentUser(r.Context()) == nil {
				errs.Handle(w, r, errors.NewAuthenticationFailedError("you must be signed in"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SelfOrAdmin resolves the {user} route parameter and allows the request
// only when the signed-in user is that user or an administrator
func SelfOrAdmin(users UserLookup, errs *errors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			current := CurrentUser(r.Context())
			if current == nil {
				errs.Handle(w, r, errors.NewAuthenticationFailedError("you must be signed in"))
				return
			}

			userName := chi.URLParam(r, "user")
			target, err := users.GetByUserName(r.Context(), userName)
			if err != nil {
				errs.Handle(w, r, err)
				return
			}

			switch {
			case target != nil && target.UserID == current.UserID:
			case current.IsAdmin():
				if target == nil {
					errs.Handle(w, r, errors.NewNoSuchUserError(userName))
					return
				}
			default:
				// Non-admins cannot tell a missing user from someone else's
				errs.Handle(w, r, errors.NewNotAuthorizedError("you may only access your own records"))
				return
			}

			ctx := context.WithValue(r.Context(), targetUserKey, target)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken reads the session token from the Authorization header or
// the session cookie
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}
