package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CounterTableAPI is the subset of the DynamoDB client the distributed
// limiter needs
type CounterTableAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DistributedRateLimiter implements fixed window rate limiting using DynamoDB
// as the state store, so that limits hold across Lambda invocations and
// API instances
type DistributedRateLimiter struct {
	client    CounterTableAPI
	tableName string
	limit     int
	window    time.Duration
	keyPrefix string
	now       func() time.Time
}

// RateLimitEntry represents a rate limit counter in DynamoDB
type RateLimitEntry struct {
	PK        string `dynamodbav:"pk"`
	Count     int    `dynamodbav:"count"`
	WindowEnd string `dynamodbav:"windowEnd"`
	TTL       int64  `dynamodbav:"ttl"`
}

// NewDistributedLoginRateLimiter limits login attempts per client IP
func NewDistributedLoginRateLimiter(client CounterTableAPI, tableName string, attemptsPerMinute int) *DistributedRateLimiter {
	return NewDistributedRateLimiter(client, tableName, attemptsPerMinute, time.Minute, "LOGIN")
}

// NewDistributedRateLimiter creates a generic distributed rate limiter
func NewDistributedRateLimiter(client CounterTableAPI, tableName string, limit int, window time.Duration, keyPrefix string) *DistributedRateLimiter {
	return &DistributedRateLimiter{
		client:    client,
		tableName: tableName,
		limit:     limit,
		window:    window,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (r *DistributedRateLimiter) counterKey(key string, windowStart time.Time) map[string]types.AttributeValue {
	pk := fmt.Sprintf("RATELIMIT#%s#%s#%d", r.keyPrefix, key, windowStart.Unix())
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
	}
}

// Allow atomically increments the counter for the current window, only
// while it is below the limit
func (r *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r.client == nil {
		return true, nil
	}

	windowStart := r.now().Truncate(r.window)
	windowEnd := windowStart.Add(r.window)

	update := &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 r.counterKey(key, windowStart),
		UpdateExpression:    aws.String("SET #count = if_not_exists(#count, :zero) + :incr, #windowEnd = :windowEnd, #ttl = :ttl"),
		ConditionExpression: aws.String("attribute_not_exists(#count) OR #count < :limit"),
		ExpressionAttributeNames: map[string]string{
			"#count":     "count",
			"#windowEnd": "windowEnd",
			"#ttl":       "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero":      &types.AttributeValueMemberN{Value: "0"},
			":incr":      &types.AttributeValueMemberN{Value: "1"},
			":limit":     &types.AttributeValueMemberN{Value: strconv.Itoa(r.limit)},
			":windowEnd": &types.AttributeValueMemberS{Value: windowEnd.UTC().Format(time.RFC3339)},
			":ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(windowEnd.Add(time.Hour).Unix(), 10)},
		},
		ReturnValues: types.ReturnValueAllNew,
	}

	result, err := r.client.UpdateItem(ctx, update)
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return false, nil
		}
		// fail open
		return true, fmt.Errorf("rate limiter error (failing open): %w", err)
	}

	var entry RateLimitEntry
	if err := attributevalue.UnmarshalMap(result.Attributes, &entry); err != nil {
		return true, fmt.Errorf("failed to parse rate limit entry (failing open): %w", err)
	}

	return entry.Count <= r.limit, nil
}

// Reset clears the current window for key
func (r *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}

	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       r.counterKey(key, r.now().Truncate(r.window)),
	})
	return err
}

func (r *DistributedRateLimiter) Limit() int {
	return r.limit
}

func (r *DistributedRateLimiter) Window() time.Duration {
	return r.window
}
