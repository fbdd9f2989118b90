package expiring

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	e := NewEntry("v", now, time.Hour)

	assert.Equal(t, "v", e.Value())
	assert.Equal(t, now.Add(time.Hour), e.ExpiresAt())
	assert.False(t, e.IsExpired(now))
	assert.False(t, e.IsExpired(now.Add(time.Hour-time.Nanosecond)))
	assert.True(t, e.IsExpired(now.Add(time.Hour)), "expiry instant itself is expired")
	assert.True(t, e.IsExpired(now.Add(2*time.Hour)))
}

func TestEntryZeroTTL(t *testing.T) {
	now := time.Now()
	assert.True(t, NewEntry(1, now, 0).IsExpired(now))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[*string]()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Now()
	require.NoError(t, s.Put(ctx, "k", NewEntry[*string](nil, now, time.Minute)))
	e, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, e.Value())

	v := "x"
	require.NoError(t, s.Put(ctx, "k", NewEntry(&v, now, time.Minute)))
	e, _, _ = s.Get(ctx, "k")
	assert.Equal(t, "x", *e.Value())
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[int]()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			_ = s.Put(ctx, key, NewEntry(i, now, time.Minute))
			_, _, _ = s.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, s.Len())
}
