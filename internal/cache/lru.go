// Package cache provides the short-lived coordination store for Tally:
// scan leases and windowed counters, local or shared through Redis.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// LRUCache is an in-process cache with per-entry expiry. Values and counters
// share one recency list, so maxSize bounds both. It is the local tier cache
// and the L1 of TwoPhaseCache.
type LRUCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[entryKey]*list.Element
	recency *list.List
	now     func() time.Time
}

type entryKind uint8

const (
	valueEntry entryKind = iota
	counterEntry
)

type entryKey struct {
	kind entryKind
	key  string
}

type entry struct {
	id        entryKey
	value     []byte
	count     int64
	expiresAt time.Time
}

// NewLRUCache creates a cache holding at most maxSize entries.
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &LRUCache{
		maxSize: maxSize,
		entries: make(map[entryKey]*list.Element),
		recency: list.New(),
		now:     time.Now,
	}
}

// lookup returns the live entry for id, dropping it if expired. Callers hold mu.
func (c *LRUCache) lookup(id entryKey) *entry {
	elem, ok := c.entries[id]
	if !ok {
		return nil
	}
	e := elem.Value.(*entry)
	if !c.now().Before(e.expiresAt) {
		c.drop(elem)
		return nil
	}
	c.recency.MoveToFront(elem)
	return e
}

// insert adds a fresh entry and evicts from the cold end. Callers hold mu.
func (c *LRUCache) insert(e *entry) {
	if old, ok := c.entries[e.id]; ok {
		c.drop(old)
	}
	c.entries[e.id] = c.recency.PushFront(e)
	for c.recency.Len() > c.maxSize {
		c.drop(c.recency.Back())
	}
}

func (c *LRUCache) drop(elem *list.Element) {
	c.recency.Remove(elem)
	delete(c.entries, elem.Value.(*entry).id)
}

// Get returns the value for key, or nil when absent or expired.
func (c *LRUCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.lookup(entryKey{valueEntry, key}); e != nil {
		return e.value, nil
	}
	return nil, nil
}

// Set stores value under key until ttl elapses.
func (c *LRUCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.insert(&entry{
		id:        entryKey{valueEntry, key},
		value:     value,
		expiresAt: c.now().Add(ttl),
	})
	return nil
}

// Delete removes the value and the counter stored under key.
func (c *LRUCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, kind := range []entryKind{valueEntry, counterEntry} {
		if elem, ok := c.entries[entryKey{kind, key}]; ok {
			c.drop(elem)
		}
	}
	return nil
}

// IncrementCounter bumps the counter for key. The first increment opens a
// window of the given length; later ones within it do not extend it.
func (c *LRUCache) IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := entryKey{counterEntry, key}
	if e := c.lookup(id); e != nil {
		e.count++
		return e.count, nil
	}
	c.insert(&entry{id: id, count: 1, expiresAt: c.now().Add(window)})
	return 1, nil
}

// Ping always succeeds.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close empties the cache.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[entryKey]*list.Element)
	c.recency.Init()
	return nil
}

// Stats returns the number of entries and the capacity.
func (c *LRUCache) Stats() (size int, capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len(), c.maxSize
}
