package di

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bottomtime/application/ports"
	"bottomtime/application/services"
	"bottomtime/infrastructure/config"
	"bottomtime/infrastructure/messaging/eventbridge"
	"bottomtime/infrastructure/persistence/dynamodb"
	"bottomtime/infrastructure/persistence/memory"
	"bottomtime/infrastructure/persistence/redis"
	"bottomtime/interfaces/http/rest"
	"bottomtime/interfaces/http/rest/handlers"
	"bottomtime/pkg/auth"
	"bottomtime/pkg/errors"
	"bottomtime/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "bottomtime-api"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	var zc zap.Config
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build(zap.Fields(zap.String("environment", cfg.Environment)))
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(serviceName, cfg.EnableTracing)
}

// ProvideAWSConfig creates AWS configuration. SDK calls are traced when
// tracing is enabled.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config, tracer *observability.Tracer) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	tracer.InstrumentAWS(&awsCfg)
	return awsCfg, nil
}

// ProvideDynamoDBClient creates a DynamoDB client, pointed at
// DYNAMODB_ENDPOINT when one is configured
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideTables derives table names from the configured prefix
func ProvideTables(cfg *config.Config) dynamodb.Tables {
	return dynamodb.NewTables(cfg.TablePrefix)
}

// ProvideDiveLogRepository creates a dive log repository
func ProvideDiveLogRepository(client *awsdynamodb.Client, tables dynamodb.Tables, cfg *config.Config, logger *zap.Logger) ports.DiveLogRepository {
	if cfg.Storage == config.StorageMemory {
		return memory.NewDiveLogRepository()
	}
	return dynamodb.NewDiveLogRepository(client, tables.DiveLogs, logger)
}

// ProvideUserRepository creates a user repository
func ProvideUserRepository(client *awsdynamodb.Client, tables dynamodb.Tables, cfg *config.Config, logger *zap.Logger) ports.UserRepository {
	if cfg.Storage == config.StorageMemory {
		return memory.NewUserRepository()
	}
	return dynamodb.NewUserRepository(client, tables.Users, logger)
}

// ProvideOAuthRepository creates an OAuth link repository
func ProvideOAuthRepository(client *awsdynamodb.Client, tables dynamodb.Tables, cfg *config.Config, logger *zap.Logger) ports.OAuthRepository {
	if cfg.Storage == config.StorageMemory {
		return memory.NewOAuthRepository()
	}
	return dynamodb.NewOAuthRepository(client, tables.OAuth, logger)
}

// ProvideSessionStore creates the session store selected by SESSION_STORE.
// The cleanup function releases its connection or sweeper.
func ProvideSessionStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.SessionStore, func(), error) {
	if cfg.SessionStore == config.SessionStoreRedis {
		store, client, err := redis.NewSessionStore(ctx, cfg.RedisURL(), logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close Redis client", zap.Error(err))
			}
		}, nil
	}

	store := memory.NewSessionStore(time.Minute)
	return store, func() { store.Close() }, nil
}

// ProvideEventPublisher publishes to EventBridge when a bus is configured
// and only logs events otherwise
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		logger.Info("EVENT_BUS_NAME not set, domain events will only be logged")
		return eventbridge.NewLogPublisher(logger)
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideMetrics creates the CloudWatch business metrics recorder. With
// metrics disabled every call is a no-op.
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.Metrics {
	namespace := fmt.Sprintf("%s/%s", cfg.MetricsNamespace, cfg.Environment)
	if !cfg.EnableMetrics {
		return observability.NewMetrics(namespace, nil, logger)
	}
	return observability.NewMetrics(namespace, client, logger)
}

// ProvideHTTPMetrics creates the Prometheus request metrics
func ProvideHTTPMetrics() *observability.HTTPMetrics {
	return observability.NewHTTPMetrics("bottomtime")
}

// ProvideErrorHandler creates the error handler and feeds every error
// response into both metric sinks
func ProvideErrorHandler(logger *zap.Logger, httpMetrics *observability.HTTPMetrics, metrics *observability.Metrics) *errors.ErrorHandler {
	return errors.NewErrorHandler(logger,
		func(r *http.Request, kind errors.Kind, status errors.Status) {
			httpMetrics.RecordError(status.ErrorID)
		},
		func(r *http.Request, kind errors.Kind, status errors.Status) {
			metrics.RecordError(r.Context(), kind.String(), status.HTTPStatus)
		},
	)
}

// ProvideJWTConfig builds the session token settings
func ProvideJWTConfig(cfg *config.Config, logger *zap.Logger) auth.JWTConfig {
	if cfg.JWTSigningMethod == config.JWTSigningRS256 {
		return auth.JWTConfig{
			SigningMethod: config.JWTSigningRS256,
			PublicKey:     cfg.JWTPublicKey,
			PrivateKey:    cfg.JWTPrivateKey,
			Issuer:        cfg.JWTIssuer,
		}
	}

	secret := cfg.JWTSecret
	if secret == "" {
		// Validate refuses this in production
		logger.Warn("JWT_SECRET not set, using an insecure development secret")
		secret = "bottomtime-development-secret"
	}
	return auth.JWTConfig{
		SigningMethod: config.JWTSigningHS256,
		SecretKey:     secret,
		Issuer:        cfg.JWTIssuer,
	}
}

// ProvideJWTGenerator creates the session token signer
func ProvideJWTGenerator(jwtCfg auth.JWTConfig) (*auth.JWTGenerator, error) {
	return auth.NewJWTGenerator(jwtCfg)
}

// ProvideJWTValidator creates the session token validator
func ProvideJWTValidator(jwtCfg auth.JWTConfig) (*auth.JWTValidator, error) {
	return auth.NewJWTValidator(jwtCfg)
}

// ProvidePasswordHasher creates the bcrypt hasher
func ProvidePasswordHasher(cfg *config.Config) ports.PasswordHasher {
	return services.NewBcryptHasher(cfg.BcryptCost)
}

// ProvideLoginRateLimiter limits login attempts per client IP, in DynamoDB
// when RATE_LIMIT_TABLE is set so the limit holds across instances. The
// in-process limiter sweeps idle clients until cleanup.
func ProvideLoginRateLimiter(client *awsdynamodb.Client, tables dynamodb.Tables, cfg *config.Config) (auth.RateLimiter, func()) {
	if cfg.RateLimitTable && cfg.Storage == config.StorageDynamoDB {
		return auth.NewDistributedLoginRateLimiter(client, tables.RateLimits, cfg.LoginRateLimit), func() {}
	}
	limiter := auth.NewLoginRateLimiter(cfg.LoginRateLimit)
	stop := limiter.StartSweeper(limiter.Window())
	return limiter, stop
}

// ProvideAuthService creates the session service
func ProvideAuthService(
	users ports.UserRepository,
	sessions ports.SessionStore,
	hasher ports.PasswordHasher,
	generator *auth.JWTGenerator,
	validator *auth.JWTValidator,
	metrics *observability.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *services.AuthService {
	return services.NewAuthService(users, sessions, hasher, generator, validator, metrics, cfg.SessionTTL, logger)
}

// ProvideUserService creates the account service
func ProvideUserService(
	users ports.UserRepository,
	oauth ports.OAuthRepository,
	hasher ports.PasswordHasher,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *services.UserService {
	return services.NewUserService(users, oauth, hasher, publisher, logger)
}

// ProvideDiveLogService creates the dive log service
func ProvideDiveLogService(
	repo ports.DiveLogRepository,
	publisher ports.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *services.DiveLogService {
	return services.NewDiveLogService(repo, publisher, metrics, logger)
}

// ProvideAuthHandler creates the login handler. Cookies are marked Secure
// outside development.
func ProvideAuthHandler(authService *services.AuthService, errs *errors.ErrorHandler, cfg *config.Config, logger *zap.Logger) *handlers.AuthHandler {
	return handlers.NewAuthHandler(authService, errs, !cfg.IsDevelopment(), logger)
}

// ProvideUserHandler creates the account handler
func ProvideUserHandler(userService *services.UserService, authHandler *handlers.AuthHandler, errs *errors.ErrorHandler, logger *zap.Logger) *handlers.UserHandler {
	return handlers.NewUserHandler(userService, authHandler, errs, logger)
}

// ProvideDiveLogHandler creates the dive log handler
func ProvideDiveLogHandler(diveLogService *services.DiveLogService, errs *errors.ErrorHandler, logger *zap.Logger) *handlers.DiveLogHandler {
	return handlers.NewDiveLogHandler(diveLogService, errs, logger)
}

// ProvideRouter creates the HTTP router and registers readiness checks for
// the backing stores in use
func ProvideRouter(
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	diveLogHandler *handlers.DiveLogHandler,
	authService *services.AuthService,
	userService *services.UserService,
	loginLimiter auth.RateLimiter,
	errs *errors.ErrorHandler,
	tracer *observability.Tracer,
	httpMetrics *observability.HTTPMetrics,
	sessions ports.SessionStore,
	client *awsdynamodb.Client,
	tables dynamodb.Tables,
	cfg *config.Config,
	logger *zap.Logger,
) *rest.Router {
	router := rest.NewRouter(
		authHandler,
		userHandler,
		diveLogHandler,
		authService,
		userService,
		loginLimiter,
		errs,
		tracer,
		httpMetrics,
		rest.CORSConfig{Enabled: cfg.EnableCORS, Origins: cfg.CORSOrigins},
		logger,
	)
	router.TrustProxies(cfg.TrustedProxyHops)

	if cfg.Storage == config.StorageDynamoDB {
		router.AddReadinessCheck("dynamodb", func(ctx context.Context) error {
			_, err := client.DescribeTable(ctx, &awsdynamodb.DescribeTableInput{TableName: aws.String(tables.Users)})
			return err
		})
	}
	if pinger, ok := sessions.(interface{ Ping(context.Context) error }); ok {
		router.AddReadinessCheck("redis", pinger.Ping)
	}

	logger.Info("Router configured",
		zap.String("storage", cfg.Storage),
		zap.String("sessionStore", cfg.SessionStore),
		zap.Bool("tracing", tracer.Enabled()),
		zap.String("loginRateLimit", strconv.Itoa(loginLimiter.Limit())+"/"+loginLimiter.Window().String()),
	)
	return router
}
