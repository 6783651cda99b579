package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bottomtime/domain/user"

	"github.com/google/uuid"
)

// UserRepository provides an in-memory implementation of ports.UserRepository
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]user.User
	now   func() time.Time
}

// NewUserRepository creates an empty repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[string]user.User),
		now:   time.Now,
	}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) (*user.User, error) {
	stored := *u
	if stored.UserID == "" {
		stored.UserID = uuid.NewString()
	}
	stored.CreatedAt = r.now().UTC()
	stored.UpdatedAt = nil

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[stored.UserID]; exists {
		return nil, fmt.Errorf("user already exists: %s", stored.UserID)
	}
	r.users[stored.UserID] = stored

	out := stored
	return &out, nil
}

func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[u.UserID]; !exists {
		return fmt.Errorf("user not found: %s", u.UserID)
	}
	stored := *u
	now := r.now().UTC()
	stored.UpdatedAt = &now
	r.users[u.UserID] = stored
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*user.User, error) {
	return r.find(func(u user.User) bool { return u.UserID == userID }), nil
}

func (r *UserRepository) GetByUserName(ctx context.Context, userName string) (*user.User, error) {
	return r.find(func(u user.User) bool { return u.UserName == userName }), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	lower := user.NormalizeEmail(email)
	return r.find(func(u user.User) bool { return u.EmailLower == lower }), nil
}

func (r *UserRepository) find(match func(user.User) bool) *user.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			out := u
			return &out
		}
	}
	return nil
}
