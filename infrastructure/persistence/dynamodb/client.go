package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// API is the subset of the DynamoDB client the repositories use.
// *dynamodb.Client satisfies it.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Index names
const (
	UserNameIndex = "UserNameIndex"
	EmailIndex    = "EmailIndex"
	UserIDIndex   = "UserIdIndex"
	OwnerIndex    = "OwnerIndex"
)

// Tables holds the physical table names for one deployment
type Tables struct {
	Users      string
	OAuth      string
	DiveLogs   string
	RateLimits string
}

// NewTables derives table names from a deployment prefix such as "bt-dev"
func NewTables(prefix string) Tables {
	name := func(base string) string {
		if prefix == "" {
			return base
		}
		return prefix + "-" + base
	}
	return Tables{
		Users:      name("Users"),
		OAuth:      name("OAuth"),
		DiveLogs:   name("DiveLogs"),
		RateLimits: name("RateLimits"),
	}
}

// timeLayout is fixed width so that lexical order on a range key is
// chronological order
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
