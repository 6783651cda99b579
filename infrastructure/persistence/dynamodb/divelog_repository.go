package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bottomtime/domain/divelog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DiveLogRepository implements ports.DiveLogRepository on the DiveLogs table.
// Items use the entry's JSON attribute names; entryTime and the timestamps
// are stored in the fixed-width time layout so OwnerIndex sorts correctly.
type DiveLogRepository struct {
	client    API
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewDiveLogRepository creates a new DiveLogRepository
func NewDiveLogRepository(client API, tableName string, logger *zap.Logger) *DiveLogRepository {
	return &DiveLogRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

func useJSONTags(o *attributevalue.EncoderOptions) { o.TagKey = "json" }

func useJSONTagsDecoding(o *attributevalue.DecoderOptions) { o.TagKey = "json" }

// marshalEntry converts an entry to an item
func marshalEntry(e *divelog.Entry) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMapWithOptions(e, useJSONTags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dive log entry: %w", err)
	}
	for name, t := range map[string]*time.Time{
		"entryTime": e.EntryTime,
		"createdAt": e.CreatedAt,
		"updatedAt": e.UpdatedAt,
	} {
		if t != nil {
			item[name] = &types.AttributeValueMemberS{Value: formatTime(*t)}
		}
	}
	return item, nil
}

func unmarshalEntry(item map[string]types.AttributeValue) (*divelog.Entry, error) {
	var e divelog.Entry
	if err := attributevalue.UnmarshalMapWithOptions(item, &e, useJSONTagsDecoding); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dive log entry: %w", err)
	}
	return &e, nil
}

// Create stores a new entry with a generated logId and createdAt
func (r *DiveLogRepository) Create(ctx context.Context, entry *divelog.Entry) (*divelog.Entry, error) {
	stored := *entry
	now := r.now().UTC().Truncate(time.Millisecond)
	stored.LogID = uuid.NewString()
	stored.CreatedAt = &now
	stored.UpdatedAt = nil
	if stored.EntryTime != nil {
		entryTime := stored.EntryTime.UTC().Truncate(time.Millisecond)
		stored.EntryTime = &entryTime
	}

	item, err := marshalEntry(&stored)
	if err != nil {
		return nil, err
	}

	cond, err := expression.NewBuilder().
		WithCondition(expression.Name("logId").AttributeNotExists()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      item,
		ConditionExpression:       cond.Condition(),
		ExpressionAttributeNames:  cond.Names(),
		ExpressionAttributeValues: cond.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put dive log entry: %w", err)
	}

	r.logger.Debug("Stored dive log entry",
		zap.String("logID", stored.LogID),
		zap.String("ownerID", stored.OwnerID),
	)
	return &stored, nil
}

// Get returns the entry or nil
func (r *DiveLogRepository) Get(ctx context.Context, logID string) (*divelog.Entry, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"logId": &types.AttributeValueMemberS{Value: logID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get dive log entry: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}
	return unmarshalEntry(result.Item)
}

// Update sets every attribute present on entry, stamps updatedAt and
// returns the merged item. Returns nil when the entry does not exist.
func (r *DiveLogRepository) Update(ctx context.Context, entry *divelog.Entry) (*divelog.Entry, error) {
	patch := *entry
	patch.LogID = ""
	patch.OwnerID = ""
	patch.CreatedAt = nil
	now := r.now().UTC().Truncate(time.Millisecond)
	patch.UpdatedAt = &now

	attrs, err := marshalEntry(&patch)
	if err != nil {
		return nil, err
	}

	update := expression.UpdateBuilder{}
	for name, value := range attrs {
		update = update.Set(expression.Name(name), expression.Value(value))
	}

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.Name("logId").AttributeExists()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build update expression: %w", err)
	}

	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"logId": &types.AttributeValueMemberS{Value: entry.LogID},
		},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update dive log entry: %w", err)
	}

	return unmarshalEntry(result.Attributes)
}

// Destroy deletes an entry. Deleting a missing entry is not an error.
func (r *DiveLogRepository) Destroy(ctx context.Context, logID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"logId": &types.AttributeValueMemberS{Value: logID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete dive log entry: %w", err)
	}
	return nil
}

// buildQuery translates list options into an OwnerIndex query. Only one
// bound fits in the key condition; the other becomes a filter.
func (r *DiveLogRepository) buildQuery(ownerID string, opts divelog.ListOptions) (*dynamodb.QueryInput, error) {
	keyCond := expression.Key("ownerId").Equal(expression.Value(ownerID))

	var filter *expression.ConditionBuilder
	switch {
	case opts.After != nil && opts.Before != nil:
		keyCond = keyCond.And(expression.Key("entryTime").GreaterThan(expression.Value(formatTime(*opts.After))))
		f := expression.Name("entryTime").LessThan(expression.Value(formatTime(*opts.Before)))
		filter = &f
	case opts.After != nil:
		keyCond = keyCond.And(expression.Key("entryTime").GreaterThan(expression.Value(formatTime(*opts.After))))
	case opts.Before != nil:
		keyCond = keyCond.And(expression.Key("entryTime").LessThan(expression.Value(formatTime(*opts.Before))))
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if filter != nil {
		builder = builder.WithFilter(*filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	return &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(OwnerIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(opts.Order == divelog.OrderAsc),
		Limit:                     aws.Int32(int32(opts.Limit)),
	}, nil
}

// Query pages through OwnerIndex until the limit is reached
func (r *DiveLogRepository) Query(ctx context.Context, ownerID string, opts divelog.ListOptions) ([]*divelog.Entry, error) {
	opts = opts.Normalize()

	input, err := r.buildQuery(ownerID, opts)
	if err != nil {
		return nil, err
	}

	entries := make([]*divelog.Entry, 0, opts.Limit)
	for {
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query dive log entries: %w", err)
		}

		for _, item := range result.Items {
			e, err := unmarshalEntry(item)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
			if len(entries) == opts.Limit {
				return entries, nil
			}
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return entries, nil
}
