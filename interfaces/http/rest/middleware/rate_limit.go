package middleware

import (
	"net/http"
	"strconv"

	"bottomtime/pkg/auth"
	"bottomtime/pkg/errors"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RateLimit limits requests per client IP. Limiter failures let the
// request through.
func RateLimit(limiter auth.RateLimiter, errs *errors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)

			allowed, err := limiter.Allow(r.Context(), clientIP)
			if err != nil {
				logger.Error("Rate limiter error", zap.Error(err))
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(limiter.Window().Seconds())))
				errs.Handle(w, r, errors.NewRateLimitError(limiter.Limit(), limiter.Window().String()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ResetOnSuccess clears the client's count once the wrapped handler succeeds,
// so only failed attempts accumulate toward the limit.
func ResetOnSuccess(limiter auth.RateLimiter, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status < http.StatusOK || status >= http.StatusMultipleChoices {
				return
			}
			if err := limiter.Reset(r.Context(), getClientIP(r)); err != nil {
				logger.Warn("Failed to reset rate limit", zap.Error(err))
			}
		})
	}
}
