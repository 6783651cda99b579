package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bottomtime/infrastructure/config"
	"bottomtime/infrastructure/messaging/eventbridge"
	"bottomtime/infrastructure/persistence/memory"
	"bottomtime/pkg/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func localConfig() *config.Config {
	return &config.Config{
		Environment:      "test",
		Storage:          config.StorageMemory,
		AWSRegion:        "us-east-1",
		TablePrefix:      "bt-test",
		LogLevel:         "error",
		JWTSecret:        "di-secret",
		JWTIssuer:        "bottomtime-test",
		SessionTTL:       time.Hour,
		SessionStore:     config.SessionStoreMemory,
		LoginRateLimit:   5,
		BcryptCost:       4,
		MetricsNamespace: "BottomTimeTest",
	}
}

func TestInitializeContainer_Memory(t *testing.T) {
	container, cleanup, err := InitializeContainer(context.Background(), localConfig())
	require.NoError(t, err)
	defer cleanup()

	handler := container.Router.Setup()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProvideLogger_BadLevel(t *testing.T) {
	cfg := localConfig()
	cfg.LogLevel = "chatty"
	_, err := ProvideLogger(cfg)
	assert.ErrorContains(t, err, "LOG_LEVEL")
}

func TestProviders_Selection(t *testing.T) {
	cfg := localConfig()
	logger := zap.NewNop()
	tables := ProvideTables(cfg)

	assert.IsType(t, &memory.DiveLogRepository{}, ProvideDiveLogRepository(nil, tables, cfg, logger))
	assert.IsType(t, &memory.UserRepository{}, ProvideUserRepository(nil, tables, cfg, logger))
	assert.IsType(t, &eventbridge.LogPublisher{}, ProvideEventPublisher(nil, cfg, logger))
	limiter, stopSweeper := ProvideLoginRateLimiter(nil, tables, cfg)
	assert.IsType(t, &auth.SlidingWindowLimiter{}, limiter)
	stopSweeper()

	cfg.Storage = config.StorageDynamoDB
	cfg.RateLimitTable = true
	cfg.EventBusName = "bottomtime-events"
	limiter, noop := ProvideLoginRateLimiter(nil, tables, cfg)
	assert.IsType(t, &auth.DistributedRateLimiter{}, limiter)
	noop()
	assert.IsType(t, &eventbridge.Publisher{}, ProvideEventPublisher(nil, cfg, logger))

	store, cleanup, err := ProvideSessionStore(context.Background(), localConfig(), logger)
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, &memory.SessionStore{}, store)
}

func TestProvideJWTConfig_RS256(t *testing.T) {
	cfg := localConfig()
	cfg.JWTSigningMethod = config.JWTSigningRS256
	cfg.JWTPublicKey = "public-pem"
	cfg.JWTPrivateKey = "private-pem"

	jwtCfg := ProvideJWTConfig(cfg, zap.NewNop())
	assert.Equal(t, "RS256", jwtCfg.SigningMethod)
	assert.Equal(t, "public-pem", jwtCfg.PublicKey)
	assert.Equal(t, "private-pem", jwtCfg.PrivateKey)
	assert.Empty(t, jwtCfg.SecretKey)
}

func TestProvideJWTConfig_DevelopmentSecret(t *testing.T) {
	cfg := localConfig()
	cfg.JWTSecret = ""
	jwtCfg := ProvideJWTConfig(cfg, zap.NewNop())
	assert.NotEmpty(t, jwtCfg.SecretKey)
	assert.Equal(t, "bottomtime-test", jwtCfg.Issuer)
}
