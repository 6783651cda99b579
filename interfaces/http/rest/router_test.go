package rest

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bottomtime/application/services"
	"bottomtime/domain/events"
	"bottomtime/domain/user"
	"bottomtime/infrastructure/persistence/memory"
	"bottomtime/interfaces/http/rest/handlers"
	"bottomtime/pkg/auth"
	"bottomtime/pkg/errors"
	"bottomtime/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type testApp struct {
	t       *testing.T
	router  *Router
	handler http.Handler
	users   *memory.UserRepository
	hasher  *services.BcryptHasher
}

func newTestApp(t *testing.T, loginLimit int) *testApp {
	t.Helper()
	logger := zap.NewNop()

	users := memory.NewUserRepository()
	sessions := memory.NewSessionStore(0)
	t.Cleanup(func() { sessions.Close() })
	hasher := services.NewBcryptHasher(bcrypt.MinCost)
	publisher := &discardPublisher{}

	cfg := auth.JWTConfig{SigningMethod: "HS256", SecretKey: "router-secret", Issuer: "bottomtime-test"}
	generator, err := auth.NewJWTGenerator(cfg)
	require.NoError(t, err)
	validator, err := auth.NewJWTValidator(cfg)
	require.NoError(t, err)

	authService := services.NewAuthService(users, sessions, hasher, generator, validator, nil, time.Hour, logger)
	userService := services.NewUserService(users, memory.NewOAuthRepository(), hasher, publisher, logger)
	diveLogService := services.NewDiveLogService(memory.NewDiveLogRepository(), publisher, nil, logger)

	errs := errors.NewErrorHandler(logger)
	authHandler := handlers.NewAuthHandler(authService, errs, false, logger)
	router := NewRouter(
		authHandler,
		handlers.NewUserHandler(userService, authHandler, errs, logger),
		handlers.NewDiveLogHandler(diveLogService, errs, logger),
		authService,
		userService,
		auth.NewLoginRateLimiter(loginLimit),
		errs,
		observability.NewTracer("bottomtime-test", false),
		observability.NewHTTPMetrics("bottomtime_test"),
		CORSConfig{Enabled: true, Origins: []string{"*"}},
		logger,
	)

	return &testApp{t: t, router: router, handler: router.Setup(), users: users, hasher: hasher}
}

func (a *testApp) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.10:5555"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// signUp creates an account through the API and returns its session token
func (a *testApp) signUp(userName string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/users/", "", services.SignUpRequest{
		UserName: userName,
		Email:    userName + "@example.com",
		Password: "Sh4rk-Bait",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	var result services.LoginResult
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result.Token
}

func (a *testApp) seedAdmin(userName, password string) {
	a.t.Helper()
	hash, err := a.hasher.Hash(password)
	require.NoError(a.t, err)
	u := &user.User{UserName: userName, Role: user.RoleAdmin, PasswordHash: hash}
	u.SetEmail(userName + "@example.com")
	_, err = a.users.Create(context.Background(), u)
	require.NoError(a.t, err)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errors.ErrorResponse {
	t.Helper()
	var body errors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, events.DomainEvent) error { return nil }

func (discardPublisher) PublishBatch(context.Context, []events.DomainEvent) error { return nil }

func TestRouter_HealthAndReady(t *testing.T) {
	app := newTestApp(t, 10)

	rec := app.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = app.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	app.router.AddReadinessCheck("dynamodb", func(context.Context) error {
		return stderrors.New("connection refused")
	})
	rec = app.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec = app.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bottomtime_test_http_requests_total")
}

func TestRouter_SessionLifecycle(t *testing.T) {
	app := newTestApp(t, 10)
	token := app.signUp("cousteau")

	rec := app.do(http.MethodGet, "/api/auth/me/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile user.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "cousteau", profile.UserName)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	rec = app.do(http.MethodPost, "/api/auth/logout/", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = app.do(http.MethodGet, "/api/auth/me/", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 3000, decodeError(t, rec).ErrorID)

	rec = app.do(http.MethodPost, "/api/auth/login/", "", map[string]string{
		"username": "cousteau@example.com",
		"password": "Sh4rk-Bait",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookies[0])
	cookieRec := httptest.NewRecorder()
	app.handler.ServeHTTP(cookieRec, req)
	assert.Equal(t, http.StatusOK, cookieRec.Code)
}

func TestRouter_Login(t *testing.T) {
	t.Run("wrong password", func(t *testing.T) {
		app := newTestApp(t, 10)
		app.signUp("hass")

		rec := app.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "hass",
			"password": "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 3000, decodeError(t, rec).ErrorID)
	})

	t.Run("rate limited", func(t *testing.T) {
		app := newTestApp(t, 2)
		body := map[string]string{"username": "nobody", "password": "whatever"}

		for i := 0; i < 2; i++ {
			rec := app.do(http.MethodPost, "/api/auth/login", "", body)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		}

		rec := app.do(http.MethodPost, "/api/auth/login", "", body)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, 3300, decodeError(t, rec).ErrorID)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	})

	t.Run("success clears failed attempts", func(t *testing.T) {
		app := newTestApp(t, 2)
		app.signUp("hass")
		bad := map[string]string{"username": "hass", "password": "nope"}
		good := map[string]string{"username": "hass", "password": "Sh4rk-Bait"}

		assert.Equal(t, http.StatusUnauthorized, app.do(http.MethodPost, "/api/auth/login", "", bad).Code)
		assert.Equal(t, http.StatusOK, app.do(http.MethodPost, "/api/auth/login", "", good).Code)

		assert.Equal(t, http.StatusUnauthorized, app.do(http.MethodPost, "/api/auth/login", "", bad).Code)
		assert.Equal(t, http.StatusUnauthorized, app.do(http.MethodPost, "/api/auth/login", "", bad).Code)
		assert.Equal(t, http.StatusTooManyRequests, app.do(http.MethodPost, "/api/auth/login", "", bad).Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		app := newTestApp(t, 10)
		rec := app.do(http.MethodPost, "/api/auth/login", "", "{not json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 1000, decodeError(t, rec).ErrorID)
	})
}

func TestRouter_Users(t *testing.T) {
	app := newTestApp(t, 10)
	token := app.signUp("sylvia")
	other := app.signUp("eugenie")

	t.Run("duplicate user name", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/users", "", services.SignUpRequest{
			UserName: "sylvia",
			Email:    "someone-else@example.com",
			Password: "Sh4rk-Bait",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, 1010, decodeError(t, rec).ErrorID)
	})

	t.Run("weak password", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/users", "", services.SignUpRequest{
			UserName: "weakling",
			Email:    "weakling@example.com",
			Password: "short",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("self access", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/api/users/sylvia/", token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = app.do(http.MethodPatch, "/api/users/sylvia", token, map[string]string{"displayName": "Her Deepness"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Her Deepness")
	})

	t.Run("other users are hidden", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/api/users/sylvia", other, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, 3100, decodeError(t, rec).ErrorID)

		rec = app.do(http.MethodGet, "/api/users/ghost", other, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/api/users/sylvia", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("admin", func(t *testing.T) {
		app.seedAdmin("divemaster", "Adm1n-Pass")
		rec := app.do(http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "divemaster",
			"password": "Adm1n-Pass",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var result services.LoginResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

		rec = app.do(http.MethodGet, "/api/users/sylvia", result.Token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = app.do(http.MethodGet, "/api/users/ghost", result.Token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, 2100, decodeError(t, rec).ErrorID)
	})

	t.Run("change password", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/users/sylvia/changePassword", token, map[string]string{
			"oldPassword": "wrong",
			"newPassword": "N3w-Pass!",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, 3000, decodeError(t, rec).ErrorID)

		rec = app.do(http.MethodPost, "/api/users/sylvia/changePassword", token, map[string]string{
			"oldPassword": "Sh4rk-Bait",
			"newPassword": "N3w-Pass!",
		})
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("password reset", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/users/ghost/requestPasswordReset", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = app.do(http.MethodPost, "/api/users/eugenie@example.com/requestPasswordReset", "", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = app.do(http.MethodPost, "/api/users/eugenie/resetPassword", "", map[string]string{
			"resetToken":  "not-the-token",
			"newPassword": "N3w-Pass!",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, 3200, decodeError(t, rec).ErrorID)
	})

	t.Run("oauth connections", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/api/users/sylvia/oauth", token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func TestRouter_DiveLogs(t *testing.T) {
	app := newTestApp(t, 10)
	token := app.signUp("cousteau")
	other := app.signUp("hass")

	create := func(entryTime string) map[string]interface{} {
		rec := app.do(http.MethodPost, "/api/logs/cousteau/", token, map[string]interface{}{
			"entryTime": entryTime,
			"location":  "Red Sea",
			"depth":     map[string]float64{"max": 30},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
		return entry
	}

	first := create("2024-05-01T09:00:00Z")
	create("2024-05-02T09:00:00Z")
	create("2024-05-03T09:00:00Z")
	logID := first["logId"].(string)

	t.Run("list newest first", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/api/logs/cousteau?limit=2", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var entries []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		require.Len(t, entries, 2)
		assert.Equal(t, "2024-05-03T09:00:00Z", entries[0]["entryTime"])
	})

	t.Run("list with bounds", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/api/logs/cousteau?order=asc&after=2024-05-01T09:00:00Z", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var entries []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		require.Len(t, entries, 2)
		assert.Equal(t, "2024-05-02T09:00:00Z", entries[0]["entryTime"])
	})

	t.Run("bad query", func(t *testing.T) {
		for _, query := range []string{"limit=0", "limit=1001", "order=sideways", "before=yesterday"} {
			rec := app.do(http.MethodGet, "/api/logs/cousteau?"+query, token, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, query)
		}
	})

	t.Run("get and patch", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/api/logs/cousteau/"+logID, token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = app.do(http.MethodPatch, "/api/logs/cousteau/"+logID+"/", token, map[string]string{"notes": "Wreck of the Thistlegorm"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var updated map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
		assert.Equal(t, "Wreck of the Thistlegorm", updated["notes"])
		assert.Equal(t, "Red Sea", updated["location"])
		assert.NotEmpty(t, updated["updatedAt"])
	})

	t.Run("immutable fields", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/api/logs/cousteau/"+logID, token, map[string]string{"ownerId": "00000000-0000-4000-8000-000000000000"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, 3200, decodeError(t, rec).ErrorID)
	})

	t.Run("invalid entry", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/api/logs/cousteau", token, map[string]interface{}{"location": "Nowhere"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 1000, decodeError(t, rec).ErrorID)
	})

	t.Run("other owner", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/api/logs/cousteau/"+logID, other, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = app.do(http.MethodGet, "/api/logs/hass/"+logID, other, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = app.do(http.MethodDelete, "/api/logs/hass/"+logID, other, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/api/logs/cousteau/"+logID, token, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = app.do(http.MethodGet, "/api/logs/cousteau/"+logID, token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = app.do(http.MethodDelete, "/api/logs/cousteau/"+logID, token, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
