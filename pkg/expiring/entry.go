// Package expiring provides values paired with an expiry instant and stores
// that hold them per key.
//
// Stores never evict. An expired entry stays until the next Put for its key
// replaces it.
package expiring

import (
	"context"
	"time"
)

// Entry is an immutable value with the instant it stops being valid.
type Entry[T any] struct {
	value     T
	expiresAt time.Time
}

// NewEntry creates an entry that expires ttl after now.
func NewEntry[T any](value T, now time.Time, ttl time.Duration) Entry[T] {
	return Entry[T]{value: value, expiresAt: now.Add(ttl)}
}

// NewEntryAt creates an entry with an absolute expiry instant.
func NewEntryAt[T any](value T, expiresAt time.Time) Entry[T] {
	return Entry[T]{value: value, expiresAt: expiresAt}
}

// Value returns the stored value.
func (e Entry[T]) Value() T { return e.value }

// ExpiresAt returns the expiry instant.
func (e Entry[T]) ExpiresAt() time.Time { return e.expiresAt }

// IsExpired reports whether now >= expiresAt.
func (e Entry[T]) IsExpired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Store keeps one entry per key.
type Store[T any] interface {
	// Get returns the entry for key and whether one exists. Expired entries
	// are returned as-is.
	Get(ctx context.Context, key string) (Entry[T], bool, error)
	// Put replaces the entry for key.
	Put(ctx context.Context, key string, entry Entry[T]) error
}
