package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AikidoSec/ratelimit-go/internal/store"
	"github.com/AikidoSec/ratelimit-go/internal/store/storetest"
)

var dbSeq atomic.Int64

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newSQLiteStore(t *testing.T) (*Store, *testClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:ratelimit%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	s, err := New(context.Background(), db, DialectSQLite, WithClock(clock.Now))
	require.NoError(t, err)
	return s, clock
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) (store.Store, func(time.Duration)) {
		s, clock := newSQLiteStore(t)
		return s, clock.Advance
	})
}

func TestNewRejectsUnknownDialect(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = New(context.Background(), db, "oracle")
	assert.Error(t, err)

	_, err = New(context.Background(), nil, DialectSQLite)
	assert.Error(t, err)
}

func TestDialectForDriver(t *testing.T) {
	d, err := DialectForDriver("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, d)

	d, err = DialectForDriver("postgres")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)

	_, err = DialectForDriver("mssql")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	assert.Equal(t, "a = $1 AND b IN ($2, $3)", pg.rebind("a = ? AND b IN (?, ?)"))

	my := &Store{dialect: DialectMySQL}
	assert.Equal(t, "a = ?", my.rebind("a = ?"))
}

func TestGlobToLike(t *testing.T) {
	assert.Equal(t, "rl:rule:%", globToLike("rl:rule:*"))
	assert.Equal(t, "a_b", globToLike("a?b"))
	assert.Equal(t, "100!%!_x!!", globToLike("100%_x!"))
}

func TestUpdateExpiredRowReadsAsAbsent(t *testing.T) {
	s, clock := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("old"), time.Second))
	clock.Advance(2 * time.Second)

	err := s.Update(ctx, "k", func(cur []byte, found bool) ([]byte, time.Duration, bool, error) {
		assert.False(t, found)
		assert.Nil(t, cur)
		return []byte("new"), time.Minute, true, nil
	})
	require.NoError(t, err)

	got, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("new"), got)
}

func TestUpdateErrorRollsBack(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()

	boom := fmt.Errorf("boom")
	err := s.Update(ctx, "k", func([]byte, bool) ([]byte, time.Duration, bool, error) {
		return nil, 0, false, boom
	})
	require.ErrorIs(t, err, boom)

	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteExpired(t *testing.T) {
	s, clock := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Second))
	require.NoError(t, s.Set(ctx, "b", []byte("1"), 0))
	clock.Advance(time.Minute)

	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := s.Exists(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClosedDatabaseIsUnavailable(t *testing.T) {
	s, _ := newSQLiteStore(t)
	require.NoError(t, s.db.Close())

	_, _, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}
