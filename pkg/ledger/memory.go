package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation for tests and
// development. Entries are kept per logical key so writes are idempotent.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*ChangeLogEntry
	order   []string
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*ChangeLogEntry),
	}
}

// Record appends an entry, ignoring duplicates of the same logical key.
func (s *MemoryStore) Record(ctx context.Context, entry *ChangeLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entry.Key()
	if _, exists := s.entries[key]; exists {
		return nil
	}

	clone := *entry
	s.entries[key] = &clone
	s.order = append(s.order, key)
	return nil
}

// LastChange returns the most recent live entry since the cutoff, or nil.
func (s *MemoryStore) LastChange(ctx context.Context, accountID, entityID string, lever Lever, since time.Time) (*ChangeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *ChangeLogEntry
	for _, e := range s.entries {
		if e.AccountID != accountID || e.EntityID != entityID || e.Lever != lever {
			continue
		}
		if e.ExecutionMode != ModeLive {
			continue
		}
		if e.ChangeDate.Before(since) {
			continue
		}
		if latest == nil || e.ChangeDate.After(latest.ChangeDate) ||
			(e.ChangeDate.Equal(latest.ChangeDate) && e.ExecutedAt.After(latest.ExecutedAt)) {
			latest = e
		}
	}

	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

// HasOpposingLeverChange reports whether a live entry exists on another lever
// since the cutoff.
func (s *MemoryStore) HasOpposingLeverChange(ctx context.Context, accountID, entityID string, excludeLever Lever, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.AccountID != accountID || e.EntityID != entityID {
			continue
		}
		if e.Lever == excludeLever || e.ExecutionMode != ModeLive {
			continue
		}
		if !e.ChangeDate.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// Query returns matching entries, most recent change date first.
func (s *MemoryStore) Query(ctx context.Context, q *Query) ([]*ChangeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*ChangeLogEntry
	for _, key := range s.order {
		e := s.entries[key]
		if !matchesQuery(e, q) {
			continue
		}
		clone := *e
		matches = append(matches, &clone)
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].ChangeDate.Equal(matches[j].ChangeDate) {
			return matches[i].ChangeDate.After(matches[j].ChangeDate)
		}
		return matches[i].ExecutedAt.After(matches[j].ExecutedAt)
	})

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	start := q.Offset
	if start > len(matches) {
		start = len(matches)
	}
	end := start + limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end], nil
}

// Count returns the number of matching entries.
func (s *MemoryStore) Count(ctx context.Context, q *Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.entries {
		if matchesQuery(e, q) {
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

// matchesQuery applies the query filters to one entry.
func matchesQuery(e *ChangeLogEntry, q *Query) bool {
	if q.AccountID != "" && e.AccountID != q.AccountID {
		return false
	}
	if q.EntityID != "" && e.EntityID != q.EntityID {
		return false
	}
	if q.Lever != "" && e.Lever != q.Lever {
		return false
	}
	if q.Mode != "" && e.ExecutionMode != q.Mode {
		return false
	}
	if q.Status != "" && e.Status != q.Status {
		return false
	}
	if q.RuleID != "" && e.RuleID != q.RuleID {
		return false
	}
	if !q.Since.IsZero() && e.ChangeDate.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && e.ChangeDate.After(q.Until) {
		return false
	}
	return true
}

