// Package dedup tracks message IDs that have already been handled.
package dedup

import "sync"

// Store is a concurrency-safe set of processed message identifiers. Entries
// are never evicted: the set is bounded only by process lifetime, which is the
// accepted trade-off for this deployment (dedup history is legitimately lost
// on restart).
type Store struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{seen: map[string]struct{}{}}
}

// MarkIfNew atomically records id and reports whether it was unseen. Two
// concurrent calls with the same id yield exactly one true result.
func (s *Store) MarkIfNew(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// Seen reports whether id has been recorded.
func (s *Store) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

// Len returns the number of recorded ids.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
