package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time
	hasTTL    bool
}

func (e memEntry) isExpired(now time.Time) bool {
	return e.hasTTL && now.After(e.expiresAt)
}

type memorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

func (s *memorySessionStore) entry(ttl time.Duration, value []byte) memEntry {
	e := memEntry{value: value}
	if ttl > 0 {
		e.hasTTL = true
		e.expiresAt = s.now().Add(ttl)
	}
	return e
}

// lookup drops expired entries on access. Caller holds mu.
func (s *memorySessionStore) lookup(key string) (memEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memEntry{}, false
	}
	if e.isExpired(s.now()) {
		delete(s.entries, key)
		return memEntry{}, false
	}
	return e, true
}

func (s *memorySessionStore) Save(_ context.Context, id uuid.UUID, data []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionKey(id)] = s.entry(ttl, append([]byte(nil), data...))
	return nil
}

func (s *memorySessionStore) Load(_ context.Context, id uuid.UUID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(sessionKey(id))
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), e.value...), nil
}

func (s *memorySessionStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionKey(id))
	return nil
}

func (s *memorySessionStore) Replace(_ context.Context, id uuid.UUID, data []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(id)
	e, ok := s.lookup(key)
	if !ok {
		return false, nil
	}
	e.value = append([]byte(nil), data...)
	s.entries[key] = e
	return true, nil
}

func (s *memorySessionStore) Touch(_ context.Context, id uuid.UUID, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(id)
	e, ok := s.lookup(key)
	if !ok {
		return false, nil
	}
	s.entries[key] = s.entry(ttl, e.value)
	return true, nil
}
