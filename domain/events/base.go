package events

import (
	"time"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// SourceAPI identifies events raised by the REST API
const SourceAPI = "bottomtime.api"

const (
	TypeUserSignedUp           = "user.signed_up"
	TypePasswordResetRequested = "user.password_reset_requested"
	TypeDiveLogCreated         = "divelog.created"
	TypeDiveLogDeleted         = "divelog.deleted"
)

// User Events

// UserSignedUp is raised when an account is created, by password or OAuth
type UserSignedUp struct {
	BaseEvent
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Provider string `json:"provider,omitempty"`
}

func NewUserSignedUp(userID, userName, email, provider string, timestamp time.Time) UserSignedUp {
	return UserSignedUp{
		BaseEvent: BaseEvent{
			AggregateID: userID,
			EventType:   TypeUserSignedUp,
			Timestamp:   timestamp,
			Version:     1,
		},
		UserID:   userID,
		UserName: userName,
		Email:    email,
		Provider: provider,
	}
}

// PasswordResetRequested carries what a mailer needs to send the reset link.
// The token is single use and expires at ExpiresAt.
type PasswordResetRequested struct {
	BaseEvent
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewPasswordResetRequested(userID, userName, email, token string, expiresAt, timestamp time.Time) PasswordResetRequested {
	return PasswordResetRequested{
		BaseEvent: BaseEvent{
			AggregateID: userID,
			EventType:   TypePasswordResetRequested,
			Timestamp:   timestamp,
			Version:     1,
		},
		UserID:    userID,
		UserName:  userName,
		Email:     email,
		Token:     token,
		ExpiresAt: expiresAt,
	}
}

// Dive Log Events

// DiveLogCreated is raised when a new entry is persisted
type DiveLogCreated struct {
	BaseEvent
	LogID     string    `json:"log_id"`
	OwnerID   string    `json:"owner_id"`
	EntryTime time.Time `json:"entry_time"`
}

func NewDiveLogCreated(logID, ownerID string, entryTime, timestamp time.Time) DiveLogCreated {
	return DiveLogCreated{
		BaseEvent: BaseEvent{
			AggregateID: logID,
			EventType:   TypeDiveLogCreated,
			Timestamp:   timestamp,
			Version:     1,
		},
		LogID:     logID,
		OwnerID:   ownerID,
		EntryTime: entryTime,
	}
}

// DiveLogDeleted is raised when an entry is removed
type DiveLogDeleted struct {
	BaseEvent
	LogID   string `json:"log_id"`
	OwnerID string `json:"owner_id"`
}

func NewDiveLogDeleted(logID, ownerID string, timestamp time.Time) DiveLogDeleted {
	return DiveLogDeleted{
		BaseEvent: BaseEvent{
			AggregateID: logID,
			EventType:   TypeDiveLogDeleted,
			Timestamp:   timestamp,
			Version:     1,
		},
		LogID:   logID,
		OwnerID: ownerID,
	}
}
