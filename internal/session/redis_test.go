// internal/session/redis_test.go
package session

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewRedisStore(rdb, ttl), mr
}

func TestRedisStore_TouchCreatesAndIncrements(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Hour)
	ctx := context.Background()

	state, err := store.Touch(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.TurnCount)
	assert.Nil(t, state.LastRoute)

	state, err = store.Touch(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.TurnCount)
}

func TestRedisStore_SetRouteVisibleOnNextTouch(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Hour)
	ctx := context.Background()

	_, err := store.Touch(ctx, "sess-1")
	require.NoError(t, err)
	require.NoError(t, store.SetRoute(ctx, "sess-1", "track_order"))

	state, err := store.Touch(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, state.LastRoute)
	assert.Equal(t, "track_order", *state.LastRoute)
}

func TestRedisStore_ConcurrentTouchIsAtomic(t *testing.T) {
	store, _ := newTestRedisStore(t, time.Hour)
	ctx := context.Background()

	const n = 50
	counts := make([]int64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			state, err := store.Touch(ctx, "sess-hot")
			assert.NoError(t, err)
			counts[i] = state.TurnCount
		}(i)
	}
	wg.Wait()

	sort.Slice(counts, func(i, j int) bool { return counts[i] < counts[j] })
	for i := 0; i < n; i++ {
		assert.Equal(t, int64(i+1), counts[i])
	}
}

func TestRedisStore_TTLSetOnTouch(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	_, err := store.Touch(ctx, "sess-1")
	require.NoError(t, err)

	ttl := mr.TTL("session:sess-1")
	assert.Greater(t, ttl, time.Duration(0))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("session:sess-1"), "idle session must expire")

	// A fresh touch after expiry starts over.
	state, err := store.Touch(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.TurnCount)
}

func TestRedisStore_Len(t *testing.T) {
	store, _ := newTestRedisStore(t, 0)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := store.Touch(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, store.Len())
}
