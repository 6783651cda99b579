package dynamodb

import (
	"context"
	"fmt"
	"sort"

	"bottomtime/domain/user"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

type oauthItem struct {
	ProviderID string `dynamodbav:"providerId"`
	Provider   string `dynamodbav:"provider"`
	UserID     string `dynamodbav:"userId"`
	Email      string `dynamodbav:"email,omitempty"`
	CreatedAt  string `dynamodbav:"createdAt"`
}

// OAuthRepository implements ports.OAuthRepository. The table key is
// providerId plus provider; UserIdIndex lists a user's links.
type OAuthRepository struct {
	client    API
	tableName string
	logger    *zap.Logger
}

// NewOAuthRepository creates a new OAuthRepository
func NewOAuthRepository(client API, tableName string, logger *zap.Logger) *OAuthRepository {
	return &OAuthRepository{client: client, tableName: tableName, logger: logger}
}

func oauthKey(provider, providerID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"providerId": &types.AttributeValueMemberS{Value: providerID},
		"provider":   &types.AttributeValueMemberS{Value: provider},
	}
}

func (r *OAuthRepository) Create(ctx context.Context, link *user.OAuthLink) error {
	item, err := attributevalue.MarshalMap(oauthItem{
		ProviderID: link.ProviderID,
		Provider:   link.Provider,
		UserID:     link.UserID,
		Email:      link.Email,
		CreatedAt:  formatTime(link.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal oauth link: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("providerId").AttributeNotExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("failed to put oauth link %s/%s: %w", link.Provider, link.ProviderID, err)
	}

	r.logger.Debug("Linked oauth account",
		zap.String("provider", link.Provider),
		zap.String("userID", link.UserID),
	)
	return nil
}

func (r *OAuthRepository) Get(ctx context.Context, provider, providerID string) (*user.OAuthLink, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       oauthKey(provider, providerID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth link: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}
	return decodeOAuthLink(result.Item)
}

func (r *OAuthRepository) ListByUser(ctx context.Context, userID string) ([]*user.OAuthLink, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("userId").Equal(expression.Value(userID))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(UserIDIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	links := make([]*user.OAuthLink, 0)
	for {
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query oauth links: %w", err)
		}
		for _, item := range result.Items {
			link, err := decodeOAuthLink(item)
			if err != nil {
				return nil, err
			}
			links = append(links, link)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	sort.Slice(links, func(i, j int) bool { return links[i].Provider < links[j].Provider })
	return links, nil
}

func (r *OAuthRepository) Delete(ctx context.Context, provider, providerID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       oauthKey(provider, providerID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete oauth link: %w", err)
	}
	return nil
}

func decodeOAuthLink(av map[string]types.AttributeValue) (*user.OAuthLink, error) {
	var item oauthItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal oauth link: %w", err)
	}
	created, err := parseTime(item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt on oauth link: %w", err)
	}
	return &user.OAuthLink{
		ProviderID: item.ProviderID,
		Provider:   item.Provider,
		UserID:     item.UserID,
		Email:      item.Email,
		CreatedAt:  created,
	}, nil
}
