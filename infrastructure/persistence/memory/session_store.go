package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bottomtime/domain/user"
)

// SessionStore keeps sessions in process memory. Expired sessions are
// swept by a background goroutine until Close is called.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]user.Session
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

// NewSessionStore creates a store that sweeps expired sessions every interval.
// A zero interval disables sweeping.
func NewSessionStore(interval time.Duration) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]user.Session),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if interval > 0 {
		go s.cleanupRoutine(interval)
	}
	return s
}

func (s *SessionStore) Create(ctx context.Context, session *user.Session) error {
	if session == nil || session.SessionID == "" {
		return fmt.Errorf("invalid session")
	}

	s.mu.Lock()
	s.sessions[session.SessionID] = *session
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*user.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok || session.Expired(s.now()) {
		return nil, nil
	}
	return &session, nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// Close stops the sweeper
func (s *SessionStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *SessionStore) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

func (s *SessionStore) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
		}
	}
}
