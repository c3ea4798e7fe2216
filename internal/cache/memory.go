package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries caps a MemoryStore created by NewMemoryStore.
const DefaultMaxEntries = 10000

type memoryEntry struct {
	body    []byte
	created time.Time
	tags    []string
}

// MemoryStore is a process-local Store used when no Redis is configured.
// Expired entries are dropped on access and whenever the store is full; if
// it is still full the oldest entry is evicted.
type MemoryStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	entries    map[string]memoryEntry
	tags       map[string]map[string]struct{}
	// one counter per tag ever invalidated
	gens map[string]int64
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:        ttl,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		entries:    make(map[string]memoryEntry),
		tags:       make(map[string]map[string]struct{}),
		gens:       make(map[string]int64),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if expired(e.created, s.ttl, s.now()) {
		s.removeLocked(key)
		return nil, false, nil
	}
	return append([]byte(nil), e.body...), true, nil
}

func (s *MemoryStore) Snapshot(_ context.Context, tags []string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := make(Snapshot, len(tags))
	for _, tag := range tags {
		snap[tag] = s.gens[tag]
	}
	return snap, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, body []byte, snap Snapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for tag, gen := range snap {
		if s.gens[tag] != gen {
			return false, nil
		}
	}

	if _, ok := s.entries[key]; ok {
		s.removeLocked(key)
	} else if len(s.entries) >= s.maxEntries {
		s.evictLocked()
	}

	e := memoryEntry{body: append([]byte(nil), body...), created: s.now()}
	for tag := range snap {
		e.tags = append(e.tags, tag)
		keys, ok := s.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	s.entries[key] = e
	return true, nil
}

func (s *MemoryStore) InvalidateTag(_ context.Context, tag string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gens[tag]++

	keys := make([]string, 0, len(s.tags[tag]))
	for key := range s.tags[tag] {
		keys = append(keys, key)
	}
	for _, key := range keys {
		s.removeLocked(key)
	}
	return len(keys), nil
}

// removeLocked drops key and its tag memberships. Empty tag sets go too.
func (s *MemoryStore) removeLocked(key string) {
	e, ok := s.entries[key]
	if !ok {
		return
	}
	delete(s.entries, key)
	for _, tag := range e.tags {
		keys := s.tags[tag]
		delete(keys, key)
		if len(keys) == 0 {
			delete(s.tags, tag)
		}
	}
}

func (s *MemoryStore) evictLocked() {
	now := s.now()
	for key, e := range s.entries {
		if expired(e.created, s.ttl, now) {
			s.removeLocked(key)
		}
	}
	if len(s.entries) < s.maxEntries {
		return
	}

	oldest, first := "", true
	var oldestAt time.Time
	for key, e := range s.entries {
		if first || e.created.Before(oldestAt) {
			oldest, oldestAt, first = key, e.created, false
		}
	}
	s.removeLocked(oldest)
}
