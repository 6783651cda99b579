package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAppError_IsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("create failed: %w", NewForbiddenActionError("logId is server assigned"))

	assert.True(t, errors.Is(err, ErrForbiddenAction))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindForbiddenAction, KindOf(err))
}

func TestKindOf_ForeignErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err        error
		httpStatus int
		errorID    int
	}{
		{NewValidationError("bad", nil), http.StatusBadRequest, 1000},
		{NewWeakPasswordError("too short"), http.StatusBadRequest, 1000},
		{NewUsernameTakenError("jdoe"), http.StatusConflict, 1010},
		{NewEmailInUseError("a@b.c"), http.StatusConflict, 1020},
		{errors.New("dynamodb exploded"), http.StatusInternalServerError, 2000},
		{NewNotFoundError("dive log"), http.StatusNotFound, 2100},
		{NewAuthenticationFailedError(""), http.StatusUnauthorized, 3000},
		{NewNotAuthorizedError(""), http.StatusForbidden, 3100},
		{NewForbiddenActionError(""), http.StatusForbidden, 3200},
		{NewRejectedPasswordResetError("expired"), http.StatusForbidden, 3200},
	}

	for _, tt := range tests {
		t.Run(KindOf(tt.err).String(), func(t *testing.T) {
			status := StatusOf(tt.err)
			assert.Equal(t, tt.httpStatus, status.HTTPStatus)
			assert.Equal(t, tt.errorID, status.ErrorID)
		})
	}
}

func TestErrorHandler_Handle(t *testing.T) {
	handler := NewErrorHandler(zap.NewNop())

	t.Run("validation details are returned", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/logs/jdoe", nil)

		handler.Handle(w, r, NewValidationError("invalid dive log", []string{"cns must be at most 150"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.EqualValues(t, 1000, body["errorId"])
		assert.Equal(t, "invalid input", body["error"])
		assert.Equal(t, []interface{}{"cns must be at most 150"}, body["details"])
	})

	t.Run("internal errors do not leak", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/logs/jdoe", nil)

		handler.Handle(w, r, errors.New("secret table name leaked"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "secret")
		assert.Contains(t, w.Body.String(), `"errorId":2000`)
	})
}

func TestErrorHandler_MiddlewareRecoversPanics(t *testing.T) {
	handler := NewErrorHandler(zap.NewNop())
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})).ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "server error")
}
