// Package schema describes the DynamoDB tables the service needs and
// creates any that are missing.
package schema

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bottomtime/infrastructure/persistence/dynamodb"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// TableAPI is the subset of the DynamoDB client the provisioner uses
type TableAPI interface {
	DescribeTable(ctx context.Context, params *awsdynamodb.DescribeTableInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *awsdynamodb.CreateTableInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.CreateTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *awsdynamodb.UpdateTimeToLiveInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.UpdateTimeToLiveOutput, error)
}

// TableDefinition is one table and the TTL attribute to enable on it, if any
type TableDefinition struct {
	Input        *awsdynamodb.CreateTableInput
	TTLAttribute string
}

func stringAttr(name string) types.AttributeDefinition {
	return types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS}
}

func key(hash, rng string) []types.KeySchemaElement {
	elems := []types.KeySchemaElement{{AttributeName: aws.String(hash), KeyType: types.KeyTypeHash}}
	if rng != "" {
		elems = append(elems, types.KeySchemaElement{AttributeName: aws.String(rng), KeyType: types.KeyTypeRange})
	}
	return elems
}

func index(name, hash, rng string) types.GlobalSecondaryIndex {
	return types.GlobalSecondaryIndex{
		IndexName:  aws.String(name),
		KeySchema:  key(hash, rng),
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}

// Definitions returns the table layout for one deployment
func Definitions(tables dynamodb.Tables) []TableDefinition {
	return []TableDefinition{
		{Input: &awsdynamodb.CreateTableInput{
			TableName:            aws.String(tables.Users),
			BillingMode:          types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{stringAttr("userId"), stringAttr("userName"), stringAttr("emailLower")},
			KeySchema:            key("userId", ""),
			GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
				index(dynamodb.UserNameIndex, "userName", ""),
				index(dynamodb.EmailIndex, "emailLower", ""),
			},
		}},
		{Input: &awsdynamodb.CreateTableInput{
			TableName:            aws.String(tables.OAuth),
			BillingMode:          types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{stringAttr("providerId"), stringAttr("provider"), stringAttr("userId")},
			KeySchema:            key("providerId", "provider"),
			GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
				index(dynamodb.UserIDIndex, "userId", ""),
			},
		}},
		{Input: &awsdynamodb.CreateTableInput{
			TableName:            aws.String(tables.DiveLogs),
			BillingMode:          types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{stringAttr("logId"), stringAttr("ownerId"), stringAttr("entryTime")},
			KeySchema:            key("logId", ""),
			GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
				index(dynamodb.OwnerIndex, "ownerId", "entryTime"),
			},
		}},
		{
			Input: &awsdynamodb.CreateTableInput{
				TableName:            aws.String(tables.RateLimits),
				BillingMode:          types.BillingModePayPerRequest,
				AttributeDefinitions: []types.AttributeDefinition{stringAttr("pk")},
				KeySchema:            key("pk", ""),
			},
			TTLAttribute: "ttl",
		},
	}
}

// Provisioner creates missing tables
type Provisioner struct {
	client       TableAPI
	logger       *zap.Logger
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewProvisioner creates a new Provisioner
func NewProvisioner(client TableAPI, logger *zap.Logger) *Provisioner {
	return &Provisioner{
		client:       client,
		logger:       logger,
		pollInterval: 2 * time.Second,
		maxWait:      2 * time.Minute,
	}
}

// Ensure creates every table in defs that does not exist yet and waits for
// it to become active. Existing tables are left untouched.
func (p *Provisioner) Ensure(ctx context.Context, defs []TableDefinition) error {
	for _, def := range defs {
		name := aws.ToString(def.Input.TableName)

		exists, err := p.exists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			p.logger.Info("Table already exists", zap.String("table", name))
			continue
		}

		if _, err := p.client.CreateTable(ctx, def.Input); err != nil {
			var inUse *types.ResourceInUseException
			if !errors.As(err, &inUse) {
				return fmt.Errorf("failed to create table %s: %w", name, err)
			}
		}
		p.logger.Info("Created table", zap.String("table", name))

		if err := p.waitActive(ctx, name); err != nil {
			return err
		}

		if def.TTLAttribute != "" {
			_, err := p.client.UpdateTimeToLive(ctx, &awsdynamodb.UpdateTimeToLiveInput{
				TableName: aws.String(name),
				TimeToLiveSpecification: &types.TimeToLiveSpecification{
					AttributeName: aws.String(def.TTLAttribute),
					Enabled:       aws.Bool(true),
				},
			})
			if err != nil {
				return fmt.Errorf("failed to enable ttl on %s: %w", name, err)
			}
		}
	}
	return nil
}

func (p *Provisioner) exists(ctx context.Context, name string) (bool, error) {
	_, err := p.client.DescribeTable(ctx, &awsdynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err == nil {
		return true, nil
	}
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to describe table %s: %w", name, err)
}

func (p *Provisioner) waitActive(ctx context.Context, name string) error {
	deadline := time.Now().Add(p.maxWait)
	for {
		out, err := p.client.DescribeTable(ctx, &awsdynamodb.DescribeTableInput{TableName: aws.String(name)})
		if err != nil {
			return fmt.Errorf("failed to describe table %s: %w", name, err)
		}
		if out.Table != nil && out.Table.TableStatus == types.TableStatusActive {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("table %s did not become active within %s", name, p.maxWait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.pollInterval):
		}
	}
}
