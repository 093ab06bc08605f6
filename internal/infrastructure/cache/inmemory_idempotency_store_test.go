package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_ClaimAndRelease(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()
	key := "receiving:6f1c"

	isNew, err := store.MarkProcessed(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.MarkProcessed(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew, "second claim must be refused")

	processed, err := store.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.True(t, processed)

	require.NoError(t, store.Release(ctx, key))

	processed, err = store.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.False(t, processed)

	isNew, err = store.MarkProcessed(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew, "released key can be claimed again")
}

func TestInMemoryIdempotencyStore_Expiry(t *testing.T) {
	now := time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)
	store := NewInMemoryIdempotencyStore(WithStoreClock(func() time.Time { return now }))
	defer store.Close()
	ctx := context.Background()

	_, _ = store.MarkProcessed(ctx, "short-1", time.Minute)
	_, _ = store.MarkProcessed(ctx, "short-2", time.Minute)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	assert.Equal(t, 3, store.Size())

	now = now.Add(2 * time.Minute)

	processed, err := store.IsProcessed(ctx, "short-1")
	require.NoError(t, err)
	assert.False(t, processed)

	isNew, err := store.MarkProcessed(ctx, "short-2", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew, "expired key can be claimed again")

	store.sweep()
	assert.Equal(t, 2, store.Size())
}

func TestInMemoryIdempotencyStore_Sweeper(t *testing.T) {
	store := NewInMemoryIdempotencyStore(WithSweepInterval(5 * time.Millisecond))
	defer store.Close()

	_, _ = store.MarkProcessed(context.Background(), "gone", time.Millisecond)
	assert.Eventually(t, func() bool { return store.Size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestInMemoryIdempotencyStore_ConcurrentClaims(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	const workers = 50
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := store.MarkProcessed(ctx, "same-event", time.Hour); err == nil && ok {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
