package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AikidoSec/ratelimit-go/internal/store"
	"github.com/AikidoSec/ratelimit-go/internal/store/storetest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) (store.Store, func(time.Duration)) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		return store.NewMemory(store.WithClock(clock.Now)), clock.Advance
	})
}

func TestMemoryDeleteExpired(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := store.NewMemory(store.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, m.Set(ctx, "b", []byte("1"), time.Hour))
	require.NoError(t, m.Set(ctx, "c", []byte("1"), 0))

	clock.Advance(time.Minute)
	removed, err := m.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, 2, m.Len())
}

func TestMemoryCancelledContext(t *testing.T) {
	m := store.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Update(ctx, "k", func([]byte, bool) ([]byte, time.Duration, bool, error) {
		t.Fatal("update func must not run")
		return nil, 0, false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern, key string
		want         bool
	}{
		{"rl:*", "rl:rule:a:ip:1.1.1.1:endpoint:/a/b", true},
		{"rl:rule:?:*", "rl:rule:a:x", true},
		{"rl:rule:?:*", "rl:rule:ab:x", false},
		{"rl:rule.a", "rl:rule-a", false},
		{"exact", "exact", true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, store.MatchPattern(tt.pattern, tt.key))
		})
	}
}
