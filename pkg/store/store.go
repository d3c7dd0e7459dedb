// Package store holds the latest report of each kind in memory for the
// HTTP API and the WebSocket hub.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/ntpscope/ntpscope/pkg/types"
)

// Entry is a report together with the time it was stored.
type Entry struct {
	Report    *types.Report
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory report store, keyed by report kind.
type Store struct {
	mu   sync.RWMutex
	data map[types.Kind]*Entry
	now  func() time.Time // injectable for deterministic tests
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		data: make(map[types.Kind]*Entry),
		now:  time.Now,
	}
}

// Put stores or replaces the report for r.Kind.
// Callers must not modify r after calling Put.
func (s *Store) Put(r *types.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[r.Kind] = &Entry{
		Report:    r,
		UpdatedAt: s.now(),
	}
}

// Get returns the Entry for kind and whether one was found.
func (s *Store) Get(kind types.Kind) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[kind]
	return e, ok
}

// List returns all entries ordered by kind.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Report.Kind < out[j].Report.Kind })
	return out
}

// Count returns the number of stored reports.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// LastUpdate returns the time of the most recent Put, or the zero time.
func (s *Store) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last time.Time
	for _, e := range s.data {
		if e.UpdatedAt.After(last) {
			last = e.UpdatedAt
		}
	}
	return last
}
