// Package storetest holds behavior tests shared by every store.Store implementation.
package storetest

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AikidoSec/ratelimit-go/internal/store"
)

// Factory returns a fresh, empty store and a function that moves the store's clock forward.
type Factory func(t *testing.T) (s store.Store, advance func(time.Duration))

// Run runs the shared suite against the stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("get set", func(t *testing.T) { testGetSet(t, newStore) })
	t.Run("ttl", func(t *testing.T) { testTTL(t, newStore) })
	t.Run("delete and exists", func(t *testing.T) { testDeleteExists(t, newStore) })
	t.Run("keys", func(t *testing.T) { testKeys(t, newStore) })
	t.Run("update", func(t *testing.T) { testUpdate(t, newStore) })
	t.Run("concurrent update", func(t *testing.T) { testConcurrentUpdate(t, newStore) })
}

func testGetSet(t *testing.T, newStore Factory) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "k", []byte("v1"), time.Minute))
	got, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, s.Set(ctx, "k", []byte("v2"), 0))
	got, _, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func testTTL(t *testing.T, newStore Factory) {
	s, advance := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", []byte("x"), 10*time.Second))
	require.NoError(t, s.Set(ctx, "forever", []byte("y"), 0))

	advance(9 * time.Second)
	ok, err := s.Exists(ctx, "short")
	require.NoError(t, err)
	assert.True(t, ok, "key must live until its deadline")

	advance(2 * time.Second)
	ok, err = s.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	_, found, err := s.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, found)
}

func testDeleteExists(t *testing.T, newStore Factory) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), time.Minute))

	n, err := s.Delete(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testKeys(t *testing.T, newStore Factory) {
	s, _ := newStore(t)
	ctx := context.Background()

	for _, k := range []string{
		"rl:rule:api:ip:1.1.1.1:endpoint:/users",
		"rl:rule:api:ip:2.2.2.2:endpoint:/users/42",
		"rl:rule:login:user:u1:endpoint:/login",
		"other:key",
	} {
		require.NoError(t, s.Set(ctx, k, []byte("1"), time.Minute))
	}

	keys, err := s.Keys(ctx, "rl:rule:api:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"rl:rule:api:ip:1.1.1.1:endpoint:/users",
		"rl:rule:api:ip:2.2.2.2:endpoint:/users/42",
	}, keys)

	keys, err = s.Keys(ctx, "rl:rule:login:user:u?:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"rl:rule:login:user:u1:endpoint:/login"}, keys)

	keys, err = s.Keys(ctx, "nothing:*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func testUpdate(t *testing.T, newStore Factory) {
	s, _ := newStore(t)
	ctx := context.Background()

	err := s.Update(ctx, "counter", func(cur []byte, found bool) ([]byte, time.Duration, bool, error) {
		assert.False(t, found)
		return []byte("first"), time.Minute, true, nil
	})
	require.NoError(t, err)

	err = s.Update(ctx, "counter", func(cur []byte, found bool) ([]byte, time.Duration, bool, error) {
		assert.True(t, found)
		assert.Equal(t, []byte("first"), cur)
		return nil, 0, false, nil
	})
	require.NoError(t, err)

	got, _, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got, "write=false must leave the value alone")
}

func testConcurrentUpdate(t *testing.T, newStore Factory) {
	s, _ := newStore(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed int
	for _i := 0; _i < workers; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _i := 0; _i < perWorker; _i++ {
				if err := s.Update(ctx, "shared", increment); err != nil {
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	got, found, err := s.Get(ctx, "shared")
	require.NoError(t, err)
	require.True(t, found)

	// Updates may be refused with ErrConflict, but none may be lost.
	assert.Equal(t, uint64(workers*perWorker-failed), binary.BigEndian.Uint64(got))
}

func increment(cur []byte, found bool) ([]byte, time.Duration, bool, error) {
	var n uint64
	if found && len(cur) == 8 {
		n = binary.BigEndian.Uint64(cur)
	}
	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, n+1)
	return next, time.Minute, true, nil
}
