package challenge

import (
	"sync"
	"time"

	"github.com/dedupow/libdedupow-go/pow"
)

// MemStore is an in-memory challenge store guarded by a single mutex.
// Suitable for single-process deployments and tests; use a persistent
// store when challenges must survive restarts.
type MemStore struct {
	mu      sync.Mutex
	entries map[pow.Tag]*Challenge
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory challenge store.
func NewMemStore() *MemStore {
	return &MemStore{
		entries: make(map[pow.Tag]*Challenge),
	}
}

// IssueOrReplace records ch as the pending challenge for its tag.
func (s *MemStore) IssueOrReplace(ch *Challenge) error {
	if ch == nil {
		return ErrNilChallenge
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[ch.Tag] = ch
	return nil
}

// ConsumeIfPresent atomically removes and returns the pending challenge.
func (s *MemStore) ConsumeIfPresent(tag pow.Tag, now time.Time) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.entries[tag]
	if !ok {
		return nil, ErrNoChallenge
	}
	delete(s.entries, tag)
	if ch.Expired(now) {
		return nil, ErrNoChallenge
	}
	return ch, nil
}

// Get returns the pending challenge without consuming it.
func (s *MemStore) Get(tag pow.Tag, now time.Time) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.entries[tag]
	if !ok {
		return nil, ErrNoChallenge
	}
	if ch.Expired(now) {
		delete(s.entries, tag)
		return nil, ErrNoChallenge
	}
	return ch, nil
}

// Sweep removes every expired challenge.
func (s *MemStore) Sweep(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for tag, ch := range s.entries {
		if ch.Expired(now) {
			delete(s.entries, tag)
			evicted++
		}
	}
	return evicted, nil
}

// Len returns the number of stored challenges, expired ones included.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
