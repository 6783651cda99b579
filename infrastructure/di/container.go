package di

import (
	"bottomtime/infrastructure/config"
	"bottomtime/interfaces/http/rest"
	"bottomtime/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *zap.Logger
	Tracer *observability.Tracer
	Router *rest.Router
}
