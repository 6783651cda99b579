package services

import (
	"context"
	"fmt"
	"time"

	"bottomtime/application/ports"
	"bottomtime/domain/divelog"
	"bottomtime/domain/events"
	"bottomtime/domain/user"
	"bottomtime/pkg/errors"

	"go.uber.org/zap"
)

// DiveLogService enforces ownership and immutability rules on dive log
// entries before handing them to the repository
type DiveLogService struct {
	repo      ports.DiveLogRepository
	publisher ports.EventPublisher
	metrics   ports.Metrics
	logger    *zap.Logger
}

// NewDiveLogService creates a new dive log service
func NewDiveLogService(
	repo ports.DiveLogRepository,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *DiveLogService {
	return &DiveLogService{
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Create stores a new entry on behalf of owner
func (s *DiveLogService) Create(ctx context.Context, owner *user.User, candidate *divelog.Entry) (*divelog.Entry, error) {
	if candidate.LogID != "" {
		return nil, errors.NewForbiddenActionError("logId is assigned by the server and cannot be supplied")
	}
	if candidate.OwnerID != "" && candidate.OwnerID != owner.UserID {
		return nil, errors.NewForbiddenActionError("cannot create a dive log entry for another user")
	}

	record := *candidate
	record.OwnerID = owner.UserID

	if violations := divelog.CreateSchema.Validate(&record); violations != nil {
		return nil, errors.NewValidationError("dive log entry failed validation", violations)
	}

	start := time.Now()
	created, err := s.repo.Create(ctx, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to create dive log entry: %w", err)
	}
	s.recordLatency(ctx, "DiveLog.Create", time.Since(start))
	s.recordCount(ctx, "DiveLogsCreated")

	s.logger.Debug("Dive log entry created",
		zap.String("logID", created.LogID),
		zap.String("ownerID", created.OwnerID),
	)
	s.publish(ctx, events.NewDiveLogCreated(created.LogID, created.OwnerID, *created.EntryTime, time.Now()))

	return created, nil
}

// Update merges candidate into entry id. It returns nil when no such entry exists.
func (s *DiveLogService) Update(ctx context.Context, owner *user.User, id string, candidate *divelog.Entry) (*divelog.Entry, error) {
	if candidate.OwnerID != "" && candidate.OwnerID != owner.UserID {
		return nil, errors.NewForbiddenActionError("ownerId cannot be changed")
	}
	if candidate.LogID != "" && candidate.LogID != id {
		return nil, errors.NewForbiddenActionError("logId cannot be changed")
	}

	record := *candidate
	record.CreatedAt = nil
	record.UpdatedAt = nil
	record.LogID = id
	record.OwnerID = owner.UserID

	if violations := divelog.UpdateSchema.Validate(&record); violations != nil {
		return nil, errors.NewValidationError("dive log entry failed validation", violations)
	}

	updated, err := s.repo.Update(ctx, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to update dive log entry: %w", err)
	}
	return updated, nil
}

// Get returns the entry or nil
func (s *DiveLogService) Get(ctx context.Context, id string) (*divelog.Entry, error) {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get dive log entry: %w", err)
	}
	return entry, nil
}

// List returns one page of ownerID's entries ordered by entry time
func (s *DiveLogService) List(ctx context.Context, ownerID string, opts divelog.ListOptions) ([]*divelog.Entry, error) {
	opts = opts.Normalize()

	start := time.Now()
	entries, err := s.repo.Query(ctx, ownerID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list dive log entries: %w", err)
	}
	s.recordLatency(ctx, "DiveLog.List", time.Since(start))

	if entries == nil {
		entries = []*divelog.Entry{}
	}
	return entries, nil
}

// Delete removes entry id. Deleting a missing entry succeeds.
func (s *DiveLogService) Delete(ctx context.Context, id string) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get dive log entry: %w", err)
	}
	if existing == nil {
		return nil
	}

	if err := s.repo.Destroy(ctx, id); err != nil {
		return fmt.Errorf("failed to delete dive log entry: %w", err)
	}
	s.publish(ctx, events.NewDiveLogDeleted(id, existing.OwnerID, time.Now()))
	return nil
}

func (s *DiveLogService) publish(ctx context.Context, event events.DomainEvent) {
	publishEvent(ctx, s.publisher, s.logger, event)
}

func (s *DiveLogService) recordCount(ctx context.Context, name string) {
	if s.metrics != nil {
		s.metrics.RecordCount(ctx, name, nil)
	}
}

func (s *DiveLogService) recordLatency(ctx context.Context, operation string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordLatency(ctx, operation, d)
	}
}
