// Tamstore - Time-Addressable Media Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tamstore

package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in memory with a bounded event list. It
// backs tests and processes that run without a metadata database.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	maxLen int
}

// NewMemoryStore creates a store that retains at most maxLen events,
// evicting oldest first.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &MemoryStore{maxLen: maxLen}
}

// Save appends the event, evicting the oldest once full.
func (s *MemoryStore) Save(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *event)
	if len(s.events) > s.maxLen {
		s.events = s.events[len(s.events)-s.maxLen:]
	}
	return nil
}

// Recent returns the newest events, newest first.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// CountBySeverity returns event counts grouped by severity.
func (s *MemoryStore) CountBySeverity(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for i := range s.events {
		counts[s.events[i].Severity]++
	}
	return counts, nil
}

// Prune deletes events older than the cutoff.
func (s *MemoryStore) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for i := range s.events {
		if s.events[i].Timestamp.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, s.events[i])
	}
	s.events = kept
	return deleted, nil
}

// Len reports how many events are retained.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
