package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPair(t *testing.T, secret, issuer string) (*JWTGenerator, *JWTValidator) {
	t.Helper()
	cfg := JWTConfig{SigningMethod: "HS256", SecretKey: secret, Issuer: issuer}
	gen, err := NewJWTGenerator(cfg)
	require.NoError(t, err)
	val, err := NewJWTValidator(cfg)
	require.NoError(t, err)
	return gen, val
}

func TestJWT_RoundTrip(t *testing.T) {
	gen, val := newPair(t, "secret", "bottomtime")
	now := time.Now()

	token, err := gen.GenerateToken("user-1", "admin", "session-1", now, now.Add(time.Hour))
	require.NoError(t, err)

	claims, err := val.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "session-1", claims.SessionID())
}

func TestJWT_Rejections(t *testing.T) {
	gen, val := newPair(t, "secret", "bottomtime")
	now := time.Now()

	t.Run("missing", func(t *testing.T) {
		_, err := val.ValidateToken("Bearer ")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := gen.GenerateToken("user-1", "user", "s", now.Add(-2*time.Hour), now.Add(-time.Hour))
		require.NoError(t, err)
		_, err = val.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, _ := newPair(t, "other-secret", "bottomtime")
		token, err := other.GenerateToken("user-1", "user", "s", now, now.Add(time.Hour))
		require.NoError(t, err)
		_, err = val.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, _ := newPair(t, "secret", "someone-else")
		token, err := other.GenerateToken("user-1", "user", "s", now, now.Add(time.Hour))
		require.NoError(t, err)
		_, err = val.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})
}

func rsaKeyPEM(t *testing.T) (public, private string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	public = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub}))
	private = string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	return public, private
}

func TestJWT_RS256RoundTrip(t *testing.T) {
	public, private := rsaKeyPEM(t)
	cfg := JWTConfig{SigningMethod: "RS256", PublicKey: public, PrivateKey: private, Issuer: "bottomtime"}

	gen, err := NewJWTGenerator(cfg)
	require.NoError(t, err)
	val, err := NewJWTValidator(cfg)
	require.NoError(t, err)

	now := time.Now()
	token, err := gen.GenerateToken("user-1", "user", "session-1", now, now.Add(time.Hour))
	require.NoError(t, err)

	claims, err := val.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "session-1", claims.SessionID())

	t.Run("other key pair", func(t *testing.T) {
		otherPublic, _ := rsaKeyPEM(t)
		other, err := NewJWTValidator(JWTConfig{SigningMethod: "RS256", PublicKey: otherPublic})
		require.NoError(t, err)
		_, err = other.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("hs256 token rejected", func(t *testing.T) {
		hsGen, _ := newPair(t, "secret", "bottomtime")
		hsToken, err := hsGen.GenerateToken("user-1", "user", "s", now, now.Add(time.Hour))
		require.NoError(t, err)
		_, err = val.ValidateToken(hsToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewJWTValidator_Config(t *testing.T) {
	_, err := NewJWTValidator(JWTConfig{SigningMethod: "HS256"})
	assert.Error(t, err)

	_, err = NewJWTValidator(JWTConfig{SigningMethod: "none", SecretKey: "x"})
	assert.Error(t, err)

	_, err = NewJWTValidator(JWTConfig{SigningMethod: "RS256"})
	assert.Error(t, err)

	_, err = NewJWTGenerator(JWTConfig{SigningMethod: "RS256", PrivateKey: "not a pem"})
	assert.Error(t, err)
}

func TestUserContext(t *testing.T) {
	_, err := GetUserFromContext(context.Background())
	assert.Error(t, err)

	ctx := SetUserInContext(context.Background(), &UserContext{UserID: "u", Role: "admin"})
	uc, err := GetUserFromContext(ctx)
	require.NoError(t, err)
	assert.True(t, uc.IsAdmin())
}

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	limiter := NewSlidingWindowLimiter(2, time.Minute)
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return clock }

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, _ := limiter.Allow(ctx, "1.2.3.4")
	assert.False(t, allowed)

	allowed, _ = limiter.Allow(ctx, "5.6.7.8")
	assert.True(t, allowed, "keys are independent")

	clock = clock.Add(61 * time.Second)
	allowed, _ = limiter.Allow(ctx, "1.2.3.4")
	assert.True(t, allowed, "window slides")

	clock = clock.Add(2 * time.Minute)
	limiter.Sweep()
	assert.Empty(t, limiter.windows)
}

func TestSlidingWindowLimiter_Sweeper(t *testing.T) {
	ctx := context.Background()
	limiter := NewSlidingWindowLimiter(1, 20*time.Millisecond)

	for i := 0; i < 500; i++ {
		allowed, err := limiter.Allow(ctx, "10.0."+strconv.Itoa(i/256)+"."+strconv.Itoa(i%256))
		require.NoError(t, err)
		require.True(t, allowed)
	}

	size := func() int {
		limiter.mu.Lock()
		defer limiter.mu.Unlock()
		return len(limiter.windows)
	}
	require.Equal(t, 500, size())

	stop := limiter.StartSweeper(5 * time.Millisecond)
	assert.Eventually(t, func() bool { return size() == 0 }, time.Second, 5*time.Millisecond)

	stop()
	stop()

	allowed, err := limiter.Allow(ctx, "10.9.9.9")
	require.NoError(t, err)
	assert.True(t, allowed)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, size(), "stopped sweeper leaves keys alone")
}

// fakeCounterTable emulates the conditional counter update
type fakeCounterTable struct {
	counts map[string]int
	fail   error
}

func (f *fakeCounterTable) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	pk := in.Key["pk"].(*types.AttributeValueMemberS).Value
	limit, err := strconv.Atoi(in.ExpressionAttributeValues[":limit"].(*types.AttributeValueMemberN).Value)
	if err != nil {
		return nil, err
	}
	if f.counts[pk] >= limit {
		return nil, &types.ConditionalCheckFailedException{}
	}
	f.counts[pk]++
	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
		"pk":    &types.AttributeValueMemberS{Value: pk},
		"count": &types.AttributeValueMemberN{Value: strconv.Itoa(f.counts[pk])},
	}}, nil
}

func (f *fakeCounterTable) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	delete(f.counts, in.Key["pk"].(*types.AttributeValueMemberS).Value)
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDistributedRateLimiter(t *testing.T) {
	ctx := context.Background()
	table := &fakeCounterTable{counts: map[string]int{}}
	limiter := NewDistributedLoginRateLimiter(table, "bt-test-RateLimits", 3)

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "1.2.3.4"))
	allowed, _ = limiter.Allow(ctx, "1.2.3.4")
	assert.True(t, allowed)

	table.fail = errors.New("throttled")
	allowed, err = limiter.Allow(ctx, "1.2.3.4")
	assert.True(t, allowed)
	assert.Error(t, err)
}
