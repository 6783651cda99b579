package ports

import (
	"context"
	"time"

	"bottomtime/domain/divelog"
	"bottomtime/domain/events"
	"bottomtime/domain/user"
)

// DiveLogRepository defines the interface for dive log persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type DiveLogRepository interface {
	// Create stores a new entry, assigning its logId and createdAt
	Create(ctx context.Context, entry *divelog.Entry) (*divelog.Entry, error)

	// Get returns the entry or nil if it does not exist
	Get(ctx context.Context, logID string) (*divelog.Entry, error)

	// Update merges the fields present in entry into the stored entry and
	// stamps updatedAt. Returns nil if no entry has entry.LogID.
	Update(ctx context.Context, entry *divelog.Entry) (*divelog.Entry, error)

	// Destroy removes an entry. Removing a missing entry is not an error.
	Destroy(ctx context.Context, logID string) error

	// Query returns one page of an owner's entries ordered by entryTime
	Query(ctx context.Context, ownerID string, opts divelog.ListOptions) ([]*divelog.Entry, error)
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// Create stores a new user, assigning its userId and createdAt
	Create(ctx context.Context, u *user.User) (*user.User, error)

	// Save overwrites an existing user and stamps updatedAt
	Save(ctx context.Context, u *user.User) error

	// Each getter returns nil when no user matches
	GetByID(ctx context.Context, userID string) (*user.User, error)
	GetByUserName(ctx context.Context, userName string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// OAuthRepository defines the interface for OAuth link persistence
type OAuthRepository interface {
	Create(ctx context.Context, link *user.OAuthLink) error

	// Get returns nil when the provider account is not linked
	Get(ctx context.Context, provider, providerID string) (*user.OAuthLink, error)

	ListByUser(ctx context.Context, userID string) ([]*user.OAuthLink, error)

	Delete(ctx context.Context, provider, providerID string) error
}

// SessionStore keeps server-side login sessions
type SessionStore interface {
	Create(ctx context.Context, session *user.Session) error

	// Get returns nil for unknown or expired sessions
	Get(ctx context.Context, sessionID string) (*user.Session, error)

	Delete(ctx context.Context, sessionID string) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// PasswordHasher hashes and verifies account passwords
type PasswordHasher interface {
	Hash(password string) (string, error)

	// Compare returns nil when password matches hash
	Compare(hash, password string) error
}

// Metrics records business metrics. Implementations must not fail the caller.
type Metrics interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string)
	RecordLatency(ctx context.Context, operation string, latency time.Duration)
}
