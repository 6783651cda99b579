package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"bottomtime/domain/divelog"

	"github.com/google/uuid"
)

// DiveLogRepository provides an in-memory implementation of ports.DiveLogRepository
type DiveLogRepository struct {
	mu      sync.RWMutex
	entries map[string]*divelog.Entry
	now     func() time.Time
}

// NewDiveLogRepository creates an empty repository
func NewDiveLogRepository() *DiveLogRepository {
	return &DiveLogRepository{
		entries: make(map[string]*divelog.Entry),
		now:     time.Now,
	}
}

func (r *DiveLogRepository) Create(ctx context.Context, entry *divelog.Entry) (*divelog.Entry, error) {
	stored, err := cloneEntry(entry)
	if err != nil {
		return nil, err
	}
	now := r.now().UTC()
	stored.LogID = uuid.NewString()
	stored.CreatedAt = &now
	stored.UpdatedAt = nil

	r.mu.Lock()
	r.entries[stored.LogID] = stored
	r.mu.Unlock()

	return cloneEntry(stored)
}

func (r *DiveLogRepository) Get(ctx context.Context, logID string) (*divelog.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.entries[logID]
	if !ok {
		return nil, nil
	}
	return cloneEntry(stored)
}

func (r *DiveLogRepository) Update(ctx context.Context, entry *divelog.Entry) (*divelog.Entry, error) {
	patch, err := cloneEntry(entry)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.entries[entry.LogID]
	if !ok {
		return nil, nil
	}
	stored.Merge(patch)
	now := r.now().UTC()
	stored.UpdatedAt = &now

	return cloneEntry(stored)
}

func (r *DiveLogRepository) Destroy(ctx context.Context, logID string) error {
	r.mu.Lock()
	delete(r.entries, logID)
	r.mu.Unlock()
	return nil
}

func (r *DiveLogRepository) Query(ctx context.Context, ownerID string, opts divelog.ListOptions) ([]*divelog.Entry, error) {
	opts = opts.Normalize()

	r.mu.RLock()
	matches := make([]*divelog.Entry, 0)
	for _, e := range r.entries {
		if e.OwnerID != ownerID || e.EntryTime == nil || !opts.Includes(*e.EntryTime) {
			continue
		}
		matches = append(matches, e)
	}
	r.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if opts.Order == divelog.OrderAsc {
			return matches[i].EntryTime.Before(*matches[j].EntryTime)
		}
		return matches[i].EntryTime.After(*matches[j].EntryTime)
	})
	if len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}

	result := make([]*divelog.Entry, 0, len(matches))
	for _, e := range matches {
		c, err := cloneEntry(e)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

// cloneEntry deep-copies an entry so callers never share nested pointers
// with the stored value
func cloneEntry(e *divelog.Entry) (*divelog.Entry, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to copy dive log entry: %w", err)
	}
	var c divelog.Entry
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to copy dive log entry: %w", err)
	}
	return &c, nil
}
