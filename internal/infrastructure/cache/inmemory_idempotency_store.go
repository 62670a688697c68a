package cache

import (
	"context"
	"sync"
	"time"

	"github.com/clinic/backend/internal/domain/shared"
)

// DefaultCleanupInterval is how often expired keys are purged
const DefaultCleanupInterval = 5 * time.Minute

type entry struct {
	expiresAt time.Time
}

// InMemoryIdempotencyStore implements IdempotencyStore using an in-memory map.
// State is not shared between processes.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates a store that purges expired keys every DefaultCleanupInterval
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return NewInMemoryIdempotencyStoreWithInterval(DefaultCleanupInterval)
}

// NewInMemoryIdempotencyStoreWithInterval creates a store with a custom cleanup interval
func NewInMemoryIdempotencyStoreWithInterval(interval time.Duration) *InMemoryIdempotencyStore {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	store := &InMemoryIdempotencyStore{
		entries:  make(map[string]entry),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop(interval)

	return store
}

// MarkProcessed marks a key as processed with a TTL.
// Returns true if the key was newly marked, false if a live entry already existed.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, exists := s.entries[key]; exists && now.Before(e.expiresAt) {
		return false, nil
	}

	s.entries[key] = entry{expiresAt: now.Add(ttl)}
	return true, nil
}

// IsProcessed checks if a key has a live entry
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[key]
	if !exists {
		return false, nil
	}
	return time.Now().Before(e.expiresAt), nil
}

// Release removes a key
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries in the store
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
