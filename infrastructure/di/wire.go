//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"bottomtime/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideTracer,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideTables,
	ProvideDiveLogRepository,
	ProvideUserRepository,
	ProvideOAuthRepository,
	ProvideSessionStore,
	ProvideEventPublisher,
	ProvideMetrics,
	ProvideHTTPMetrics,
	ProvideErrorHandler,
	ProvideJWTConfig,
	ProvideJWTGenerator,
	ProvideJWTValidator,
	ProvidePasswordHasher,
	ProvideLoginRateLimiter,
	ProvideAuthService,
	ProvideUserService,
	ProvideDiveLogService,
	ProvideAuthHandler,
	ProvideUserHandler,
	ProvideDiveLogHandler,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
