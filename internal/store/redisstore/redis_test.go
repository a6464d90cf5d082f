package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AikidoSec/ratelimit-go/internal/store"
	"github.com/AikidoSec/ratelimit-go/internal/store/storetest"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := New(rdb, opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) (store.Store, func(time.Duration)) {
		s, mr := newTestStore(t, WithMaxRetries(1000))
		return s, mr.FastForward
	})
}

func TestUpdateSetsTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, "k", func([]byte, bool) ([]byte, time.Duration, bool, error) {
		return []byte("v"), 2 * time.Minute, true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, mr.TTL("k"))
}

func TestUpdateConflictExhaustsRetries(t *testing.T) {
	s, mr := newTestStore(t, WithMaxRetries(2))
	ctx := context.Background()

	calls := 0
	err := s.Update(ctx, "k", func([]byte, bool) ([]byte, time.Duration, bool, error) {
		calls++
		// Another writer touches the watched key before EXEC.
		require.NoError(t, mr.Set("k", "other"))
		return []byte("mine"), time.Minute, true, nil
	})

	require.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, 2, calls)

	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "other", got)
}

func TestUnavailable(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	_, _, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)

	err = s.Update(context.Background(), "k", func([]byte, bool) ([]byte, time.Duration, bool, error) {
		return []byte("v"), 0, true, nil
	})
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)

	assert.Error(t, s.Ping(context.Background(), 50*time.Millisecond))
}
