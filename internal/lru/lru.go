// Package lru is a bounded, time-aware LRU map used by the in-process analytics.
package lru

import (
	"container/list"
	"sync"
	"time"
)

type entry[V any] struct {
	key    string
	value  V
	expiry time.Time
}

// Cache holds at most capacity entries. Writes move an entry to the front and
// push its expiry to now+ttl; reads do neither, so the back of the list is
// always the entry idle the longest.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	list     *list.List // Front = most recent, Back = least recent
}

func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		list:     list.New(),
	}
}

func (c *Cache[V]) expired(ent *entry[V], now time.Time) bool {
	return c.ttl > 0 && now.After(ent.expiry)
}

// Get returns the value for key without refreshing it.
func (c *Cache[V]) Get(key string, now time.Time) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	ent := elem.Value.(*entry[V])
	if c.expired(ent, now) {
		c.removeElement(elem)
		return zero, false
	}
	return ent.value, true
}

func (c *Cache[V]) Set(key string, value V, now time.Time) {
	c.Update(key, now, func(V, bool) V { return value })
}

// Update replaces the value for key with fn(old, exists) while holding the
// cache lock, and returns the new value. fn must not call back into the cache.
func (c *Cache[V]) Update(key string, now time.Time, fn func(old V, exists bool) V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry := time.Time{}
	if c.ttl > 0 {
		expiry = now.Add(c.ttl)
	}

	if elem, exists := c.items[key]; exists {
		ent := elem.Value.(*entry[V])
		if !c.expired(ent, now) {
			ent.value = fn(ent.value, true)
			if expiry.After(ent.expiry) {
				ent.expiry = expiry
			}
			c.list.MoveToFront(elem)
			return ent.value
		}
		c.removeElement(elem)
	}

	if c.list.Len() >= c.capacity {
		c.evictOldest()
	}

	var zero V
	ent := &entry[V]{
		key:    key,
		value:  fn(zero, false),
		expiry: expiry,
	}
	c.items[key] = c.list.PushFront(ent)
	return ent.value
}

func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if exists {
		c.removeElement(elem)
	}
	return exists
}

// View calls fn with the live value for key while holding the lock, so fn may
// read state that Update mutates. It reports whether key was present.
func (c *Cache[V]) View(key string, now time.Time, fn func(value V)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		return false
	}
	ent := elem.Value.(*entry[V])
	if c.expired(ent, now) {
		return false
	}
	fn(ent.value)
	return true
}

// Range calls fn for live entries, most recent first, while holding the lock.
// fn returns false to stop.
func (c *Cache[V]) Range(now time.Time, fn func(key string, value V) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.list.Front(); elem != nil; elem = elem.Next() {
		ent := elem.Value.(*entry[V])
		if c.expired(ent, now) {
			continue
		}
		if !fn(ent.key, ent.value) {
			return
		}
	}
}

// EvictExpired removes at most limit expired entries from the idle end and
// reports how many it removed. Callers loop while the result equals limit so
// the lock is released between batches.
func (c *Cache[V]) EvictExpired(now time.Time, limit int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for removed < limit {
		elem := c.list.Back()
		if elem == nil || !c.expired(elem.Value.(*entry[V]), now) {
			break
		}
		c.removeElement(elem)
		removed++
	}
	return removed
}

func (c *Cache[V]) evictOldest() {
	if elem := c.list.Back(); elem != nil {
		c.removeElement(elem)
	}
}

func (c *Cache[V]) removeElement(elem *list.Element) {
	c.list.Remove(elem)
	delete(c.items, elem.Value.(*entry[V]).key)
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}

func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.list.Init()
}
