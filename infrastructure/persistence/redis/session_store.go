// Package redis keeps login sessions in Redis so every API instance sees
// the same sessions.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bottomtime/domain/user"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sessionKeyPrefix = "bottomtime:session:"

// SessionStore implements ports.SessionStore. Each session is stored as
// JSON under its own key with a TTL matching the session expiry.
type SessionStore struct {
	client redis.Cmdable
	logger *zap.Logger
	now    func() time.Time
}

// NewSessionStore connects to redisURL and verifies the connection
func NewSessionStore(ctx context.Context, redisURL string, logger *zap.Logger) (*SessionStore, *redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis session store", zap.String("addr", opts.Addr))
	return NewSessionStoreFromClient(client, logger), client, nil
}

// NewSessionStoreFromClient wraps an existing client
func NewSessionStoreFromClient(client redis.Cmdable, logger *zap.Logger) *SessionStore {
	return &SessionStore{client: client, logger: logger, now: time.Now}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func (s *SessionStore) Create(ctx context.Context, session *user.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("session %s is already expired", session.SessionID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(session.SessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*user.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session user.Session
	if err := json.Unmarshal(data, &session); err != nil {
		s.logger.Warn("Discarding unreadable session", zap.String("sessionID", sessionID), zap.Error(err))
		return nil, nil
	}
	if session.Expired(s.now()) {
		return nil, nil
	}
	return &session, nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Ping checks that Redis is reachable
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
