// Command provision creates the DynamoDB tables for one deployment. It is
// meant for DynamoDB Local and fresh development accounts; production
// tables are managed by infrastructure code.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bottomtime/infrastructure/config"
	"bottomtime/infrastructure/di"
	"bottomtime/infrastructure/persistence/schema"

	"go.uber.org/zap"
)

func main() {
	prefix := flag.String("prefix", "", "table name prefix (defaults to TABLE_PREFIX)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *prefix != "" {
		cfg.TablePrefix = *prefix
	}

	logger, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	awsCfg, err := di.ProvideAWSConfig(ctx, cfg, di.ProvideTracer(cfg))
	if err != nil {
		logger.Fatal("Failed to load AWS config", zap.Error(err))
	}
	client := di.ProvideDynamoDBClient(awsCfg, cfg)

	tables := di.ProvideTables(cfg)
	if err := schema.NewProvisioner(client, logger).Ensure(ctx, schema.Definitions(tables)); err != nil {
		logger.Fatal("Provisioning failed", zap.Error(err))
	}

	logger.Info("Tables ready",
		zap.String("prefix", cfg.TablePrefix),
		zap.String("endpoint", cfg.DynamoDBEndpoint),
	)
}
