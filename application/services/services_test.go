package services

import (
	"context"
	"testing"
	"time"

	"bottomtime/domain/events"
	"bottomtime/domain/user"
	"bottomtime/infrastructure/persistence/memory"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// mockPublisher records published events
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}

type fixture struct {
	users     *memory.UserRepository
	oauth     *memory.OAuthRepository
	logs      *memory.DiveLogRepository
	sessions  *memory.SessionStore
	hasher    *BcryptHasher
	publisher *mockPublisher

	userService    *UserService
	diveLogService *DiveLogService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:     memory.NewUserRepository(),
		oauth:     memory.NewOAuthRepository(),
		logs:      memory.NewDiveLogRepository(),
		sessions:  memory.NewSessionStore(0),
		hasher:    NewBcryptHasher(bcrypt.MinCost),
		publisher: &mockPublisher{},
	}
	t.Cleanup(func() { f.sessions.Close() })

	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()

	logger := zap.NewNop()
	f.userService = NewUserService(f.users, f.oauth, f.hasher, f.publisher, logger)
	f.diveLogService = NewDiveLogService(f.logs, f.publisher, nil, logger)
	return f
}

// seedUser stores a user, with a password when password is not empty
func (f *fixture) seedUser(t *testing.T, userName, password string) *user.User {
	t.Helper()
	u := &user.User{UserName: userName, DisplayName: userName, Role: user.RoleUser}
	u.SetEmail(userName + "@example.com")
	if password != "" {
		hash, err := f.hasher.Hash(password)
		require.NoError(t, err)
		u.PasswordHash = hash
	}
	created, err := f.users.Create(context.Background(), u)
	require.NoError(t, err)
	return created
}

func (f *fixture) reload(t *testing.T, userID string) *user.User {
	t.Helper()
	u, err := f.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func ptr[T any](v T) *T { return &v }

func day(d int) *time.Time {
	t := time.Date(2024, 7, d, 9, 0, 0, 0, time.UTC)
	return &t
}
