package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/okian/rehearsal/internal/domain/availability"
	"github.com/okian/rehearsal/pkg/metrics"
)

// MemoryStore is a mutex-guarded, in-memory Store.
type MemoryStore struct {
	mu           sync.RWMutex
	members      map[string][]string              // group -> users in join order
	groups       map[string][]string              // user -> groups in join order
	availability map[string][]availability.Record // user -> records
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members:      make(map[string][]string),
		groups:       make(map[string][]string),
		availability: make(map[string][]availability.Record),
	}
}

// Members implements Store.
func (s *MemoryStore) Members(ctx context.Context, groupID string) ([]string, error) {
	defer observe("members", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	users, ok := s.members[groupID]
	if !ok || len(users) == 0 {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, ErrNotFound
	}
	return append([]string(nil), users...), nil
}

// IsMember implements Store.
func (s *MemoryStore) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Contains(s.members[groupID], userID), nil
}

// GroupsOf implements Store.
func (s *MemoryStore) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.groups[userID]...), nil
}

// Availability implements Store.
func (s *MemoryStore) Availability(ctx context.Context, userIDs []string) ([]availability.Record, error) {
	defer observe("availability", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	seen := make(map[string]struct{}, len(userIDs))
	var out []availability.Record
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		for _, r := range s.availability[id] {
			if r.Recurring {
				out = append(out, r)
			}
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return lessRecord(out[i], out[j]) })
	return out, nil
}

// ReplaceAvailability implements Store.
func (s *MemoryStore) ReplaceAvailability(ctx context.Context, userID string, records []availability.Record) error {
	defer observe("replace_availability", time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]availability.Record, len(records))
	for i, r := range records {
		r.UserID = userID
		stored[i] = r
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(stored) == 0 {
		delete(s.availability, userID)
		return nil
	}
	s.availability[userID] = stored
	return nil
}

// AddMember implements Store.
func (s *MemoryStore) AddMember(ctx context.Context, groupID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.members[groupID], userID) {
		return nil
	}
	s.members[groupID] = append(s.members[groupID], userID)
	s.groups[userID] = append(s.groups[userID], groupID)
	return nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func observe(op string, start time.Time) {
	metrics.RecordStoreQueryLatency(op, float64(time.Since(start).Microseconds())/1000)
}
