package expiring

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store backed by a mutex-guarded map.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[T]
}

// NewMemoryStore creates an empty store.
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{entries: make(map[string]Entry[T])}
}

// Get implements Store.
func (s *MemoryStore[T]) Get(_ context.Context, key string) (Entry[T], bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

// Put implements Store. The last writer for a key wins.
func (s *MemoryStore[T]) Put(_ context.Context, key string, entry Entry[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

// Len returns the number of entries, expired ones included.
func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
