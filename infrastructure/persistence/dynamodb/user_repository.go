package dynamodb

import (
	"context"
	"fmt"
	"time"

	"bottomtime/domain/user"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// userItem is the stored shape of a user. Unlike the API shape it keeps
// the password hash.
type userItem struct {
	UserID                  string `dynamodbav:"userId"`
	UserName                string `dynamodbav:"userName"`
	Email                   string `dynamodbav:"email"`
	EmailLower              string `dynamodbav:"emailLower"`
	DisplayName             string `dynamodbav:"displayName,omitempty"`
	PasswordHash            string `dynamodbav:"passwordHash,omitempty"`
	Role                    string `dynamodbav:"role"`
	AvatarURL               string `dynamodbav:"avatarUrl,omitempty"`
	PasswordResetToken      string `dynamodbav:"passwordResetToken,omitempty"`
	PasswordResetExpiration string `dynamodbav:"passwordResetExpiration,omitempty"`
	CreatedAt               string `dynamodbav:"createdAt"`
	UpdatedAt               string `dynamodbav:"updatedAt,omitempty"`
}

func toUserItem(u *user.User) userItem {
	item := userItem{
		UserID:             u.UserID,
		UserName:           u.UserName,
		Email:              u.Email,
		EmailLower:         u.EmailLower,
		DisplayName:        u.DisplayName,
		PasswordHash:       u.PasswordHash,
		Role:               string(u.Role),
		AvatarURL:          u.AvatarURL,
		PasswordResetToken: u.PasswordResetToken,
		CreatedAt:          formatTime(u.CreatedAt),
	}
	if u.PasswordResetExpiration != nil {
		item.PasswordResetExpiration = formatTime(*u.PasswordResetExpiration)
	}
	if u.UpdatedAt != nil {
		item.UpdatedAt = formatTime(*u.UpdatedAt)
	}
	return item
}

func (item userItem) toUser() (*user.User, error) {
	u := &user.User{
		UserID:             item.UserID,
		UserName:           item.UserName,
		Email:              item.Email,
		EmailLower:         item.EmailLower,
		DisplayName:        item.DisplayName,
		PasswordHash:       item.PasswordHash,
		Role:               user.Role(item.Role),
		AvatarURL:          item.AvatarURL,
		PasswordResetToken: item.PasswordResetToken,
	}

	created, err := parseTime(item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt on user %s: %w", item.UserID, err)
	}
	u.CreatedAt = created

	if u.PasswordResetExpiration, err = parseOptionalTime(item.PasswordResetExpiration); err != nil {
		return nil, fmt.Errorf("invalid passwordResetExpiration on user %s: %w", item.UserID, err)
	}
	if u.UpdatedAt, err = parseOptionalTime(item.UpdatedAt); err != nil {
		return nil, fmt.Errorf("invalid updatedAt on user %s: %w", item.UserID, err)
	}
	return u, nil
}

// UserRepository implements ports.UserRepository on the Users table
type UserRepository struct {
	client    API
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(client API, tableName string, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) (*user.User, error) {
	stored := *u
	if stored.UserID == "" {
		stored.UserID = uuid.NewString()
	}
	stored.CreatedAt = r.now().UTC().Truncate(time.Millisecond)
	stored.UpdatedAt = nil

	if err := r.put(ctx, &stored, expression.Name("userId").AttributeNotExists()); err != nil {
		return nil, err
	}

	r.logger.Debug("Stored user", zap.String("userID", stored.UserID))
	return &stored, nil
}

func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	stored := *u
	now := r.now().UTC().Truncate(time.Millisecond)
	stored.UpdatedAt = &now
	return r.put(ctx, &stored, expression.Name("userId").AttributeExists())
}

func (r *UserRepository) put(ctx context.Context, u *user.User, cond expression.ConditionBuilder) error {
	item, err := attributevalue.MarshalMap(toUserItem(u))
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	expr, err := expression.NewBuilder().WithCondition(cond).Build()
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
		return fmt.Errorf("failed to put user %s: %w", u.UserID, err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*user.User, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}
	return decodeUser(result.Item)
}

func (r *UserRepository) GetByUserName(ctx context.Context, userName string) (*user.User, error) {
	return r.queryOne(ctx, UserNameIndex, "userName", userName)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.queryOne(ctx, EmailIndex, "emailLower", user.NormalizeEmail(email))
}

// queryOne returns the first user on a unique secondary index
func (r *UserRepository) queryOne(ctx context.Context, index, attr, value string) (*user.User, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(attr).Equal(expression.Value(value))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", index, err)
	}
	if len(result.Items) == 0 {
		return nil, nil
	}
	return decodeUser(result.Items[0])
}

func decodeUser(av map[string]types.AttributeValue) (*user.User, error) {
	var item userItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return item.toUser()
}
