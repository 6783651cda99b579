package handlers

import (
	"context"
	"net/http"

	"bottomtime/domain/divelog"
	"bottomtime/domain/user"
	"bottomtime/interfaces/http/rest/middleware"
	"bottomtime/pkg/common"
	"bottomtime/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LogBook is the dive log service as seen by the handlers
type LogBook interface {
	Create(ctx context.Context, owner *user.User, candidate *divelog.Entry) (*divelog.Entry, error)
	Update(ctx context.Context, owner *user.User, id string, candidate *divelog.Entry) (*divelog.Entry, error)
	Get(ctx context.Context, id string) (*divelog.Entry, error)
	List(ctx context.Context, ownerID string, opts divelog.ListOptions) ([]*divelog.Entry, error)
	Delete(ctx context.Context, id string) error
}

// DiveLogHandler handles dive log requests. Every route runs behind
// SelfOrAdmin, so the {user} owner is already resolved.
type DiveLogHandler struct {
	logs   LogBook
	errs   *errors.ErrorHandler
	logger *zap.Logger
}

// NewDiveLogHandler creates a new dive log handler
func NewDiveLogHandler(logs LogBook, errs *errors.ErrorHandler, logger *zap.Logger) *DiveLogHandler {
	return &DiveLogHandler{
		logs:   logs,
		errs:   errs,
		logger: logger,
	}
}

// Create handles POST /api/logs/{user}/
func (h *DiveLogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var candidate divelog.Entry
	if err := common.ParseJSONBody(w, r, &candidate); err != nil {
		h.errs.Handle(w, r, badBody(err))
		return
	}

	entry, err := h.logs.Create(r.Context(), middleware.TargetUser(r.Context()), &candidate)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, entry)
}

// List handles GET /api/logs/{user}/
func (h *DiveLogHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	entries, err := h.logs.List(r.Context(), middleware.TargetUser(r.Context()).UserID, opts)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, entries)
}

// Get handles GET /api/logs/{user}/{logId}/
func (h *DiveLogHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.ownedEntry(w, r)
	if !ok {
		return
	}
	common.RespondJSON(w, http.StatusOK, entry)
}

// Update handles PUT and PATCH /api/logs/{user}/{logId}/. Both merge the
// supplied fields into the stored entry.
func (h *DiveLogHandler) Update(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ownedEntry(w, r); !ok {
		return
	}

	var candidate divelog.Entry
	if err := common.ParseJSONBody(w, r, &candidate); err != nil {
		h.errs.Handle(w, r, badBody(err))
		return
	}

	logID := chi.URLParam(r, "logId")
	updated, err := h.logs.Update(r.Context(), middleware.TargetUser(r.Context()), logID, &candidate)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	if updated == nil {
		// deleted between the ownership check and the write
		h.errs.Handle(w, r, errors.NewNotFoundError("dive log entry"))
		return
	}
	common.RespondJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/logs/{user}/{logId}/. Deleting a missing
// entry succeeds.
func (h *DiveLogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	logID := chi.URLParam(r, "logId")
	owner := middleware.TargetUser(r.Context())

	entry, err := h.logs.Get(r.Context(), logID)
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	if entry != nil && entry.OwnerID != owner.UserID {
		h.errs.Handle(w, r, errors.NewNotFoundError("dive log entry"))
		return
	}

	if err := h.logs.Delete(r.Context(), logID); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// ownedEntry loads {logId} and checks that it belongs to {user}. It writes
// the error response itself and reports false when the request should stop.
func (h *DiveLogHandler) ownedEntry(w http.ResponseWriter, r *http.Request) (*divelog.Entry, bool) {
	entry, err := h.logs.Get(r.Context(), chi.URLParam(r, "logId"))
	if err != nil {
		h.errs.Handle(w, r, err)
		return nil, false
	}
	if entry == nil || entry.OwnerID != middleware.TargetUser(r.Context()).UserID {
		h.errs.Handle(w, r, errors.NewNotFoundError("dive log entry"))
		return nil, false
	}
	return entry, true
}

func listOptions(r *http.Request) (divelog.ListOptions, error) {
	var opts divelog.ListOptions

	limit, ok, err := common.QueryInt(r, "limit")
	if err != nil {
		return opts, errors.NewValidationError(err.Error(), nil)
	}
	if ok {
		if limit > divelog.MaxListLimit {
			return opts, errors.NewValidationError("limit may not exceed 1000", nil)
		}
		opts.Limit = limit
	}

	order, err := common.QueryEnum(r, "order", string(divelog.OrderAsc), string(divelog.OrderDesc))
	if err != nil {
		return opts, errors.NewValidationError(err.Error(), nil)
	}
	opts.Order = divelog.Order(order)

	if opts.Before, err = common.QueryTime(r, "before"); err != nil {
		return opts, errors.NewValidationError(err.Error(), nil)
	}
	if opts.After, err = common.QueryTime(r, "after"); err != nil {
		return opts, errors.NewValidationError(err.Error(), nil)
	}
	return opts, nil
}
