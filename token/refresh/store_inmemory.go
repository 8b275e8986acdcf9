package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/nawehub/session-gateway/internal/errors"
)

var _ Store = (*InMemoryStore)(nil)

type entry struct {
	result    Result
	expiresAt time.Time
}

type lockEntry struct {
	owner     string
	expiresAt time.Time
}

// InMemoryStore is a process-local Store. Expired entries are dropped on access.
type InMemoryStore struct {
	mu      sync.RWMutex
	results map[string]entry
	locks   map[string]lockEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		results: make(map[string]entry),
		locks:   make(map[string]lockEntry),
	}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*Result, error) {
	s.mu.RLock()
	e, ok := s.results[key]
	s.mu.RUnlock()

	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if !NowTimeFunc().Before(e.expiresAt) {
		s.mu.Lock()
		if e, ok := s.results[key]; ok && !NowTimeFunc().Before(e.expiresAt) {
			delete(s.results, key)
		}
		s.mu.Unlock()
		return nil, apperrors.ErrNotFound
	}

	// Return a copy to prevent external modifications
	result := e.result
	return &result, nil
}

func (s *InMemoryStore) Put(_ context.Context, key string, result *Result, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[key] = entry{result: *result, expiresAt: NowTimeFunc().Add(ttl)}
	s.evictExpired()
	return nil
}

func (s *InMemoryStore) Lock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := NowTimeFunc()
	if l, ok := s.locks[key]; ok && now.Before(l.expiresAt) {
		return "", false, nil
	}

	owner := uuid.NewString()
	s.locks[key] = lockEntry{owner: owner, expiresAt: now.Add(ttl)}
	return owner, true, nil
}

func (s *InMemoryStore) Unlock(_ context.Context, key, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.locks[key]; ok && l.owner == owner {
		delete(s.locks, key)
	}
	return nil
}

// evictExpired must be called with mu held
func (s *InMemoryStore) evictExpired() {
	now := NowTimeFunc()
	for k, e := range s.results {
		if !now.Before(e.expiresAt) {
			delete(s.results, k)
		}
	}
	for k, l := range s.locks {
		if !now.Before(l.expiresAt) {
			delete(s.locks, k)
		}
	}
}
