package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorResponse represents the API error response format
type ErrorResponse struct {
	ErrorID int         `json:"errorId"`
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// Observer is told about every error response
type Observer func(r *http.Request, kind Kind, status Status)

// ErrorHandler maps errors to the JSON error taxonomy
type ErrorHandler struct {
	logger    *zap.Logger
	observers []Observer
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, observers ...Observer) *ErrorHandler {
	return &ErrorHandler{logger: logger, observers: observers}
}

// Handle processes an error and sends an HTTP response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	status := StatusOf(err)
	response := ErrorResponse{
		ErrorID: status.ErrorID,
		Error:   status.Title,
	}

	if appErr := GetAppError(err); appErr != nil && appErr.Kind != KindInternal {
		if appErr.Details != nil {
			response.Details = appErr.Details
		} else {
			response.Details = appErr.Message
		}
	}

	h.logError(r, err, status)
	for _, observe := range h.observers {
		observe(r, KindOf(err), status)
	}
	h.sendJSON(w, status.HTTPStatus, response)
}

// logError logs an error with a level matching its status
func (h *ErrorHandler) logError(r *http.Request, err error, status Status) {
	fields := []zap.Field{
		zap.String("error_kind", KindOf(err).String()),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status.HTTPStatus),
		zap.Int("error_id", status.ErrorID),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	}

	switch {
	case status.HTTPStatus >= 500:
		if appErr := GetAppError(err); appErr != nil && appErr.StackTrace != "" {
			fields = append(fields, zap.String("stack_trace", appErr.StackTrace))
		}
		h.logger.Error("Request failed", fields...)
	default:
		h.logger.Warn("Request rejected", fields...)
	}
}

// sendJSON sends a JSON response
func (h *ErrorHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// Middleware returns an HTTP middleware that converts panics into server errors
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.Handle(w, r, NewInternalError(fmt.Sprintf("panic: %v", rec)))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
