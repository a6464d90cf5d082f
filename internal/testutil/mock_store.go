package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/AikidoSec/ratelimit-go/internal/store"
)

// MockStore wraps a store and lets tests inject failures on the request path.
type MockStore struct {
	store.Store

	// UpdateErr is returned by Update instead of touching the wrapped store.
	UpdateErr error
	// Delay blocks Update until it elapses or the context is done.
	Delay time.Duration
	// Panic makes Update panic with this value.
	Panic any

	updates atomic.Int64
}

func NewMockStore(inner store.Store) *MockStore {
	if inner == nil {
		inner = store.NewMemory()
	}
	return &MockStore{Store: inner}
}

func (m *MockStore) Update(ctx context.Context, key string, fn store.UpdateFunc) error {
	m.updates.Add(1)
	if m.Panic != nil {
		panic(m.Panic)
	}
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	return m.Store.Update(ctx, key, fn)
}

func (m *MockStore) Updates() int64 {
	return m.updates.Load()
}
