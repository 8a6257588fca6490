package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/tally/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLRU(size int) (*LRUCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC)}
	c := NewLRUCache(size)
	c.now = clock.now
	return c, clock
}

func TestLRUCache(t *testing.T) {
	ctx := context.Background()

	t.Run("ValuesExpire", func(t *testing.T) {
		c, clock := newTestLRU(10)
		c.Set(ctx, "k", []byte("v"), time.Minute)

		if val, _ := c.Get(ctx, "k"); string(val) != "v" {
			t.Fatalf("expected v, got %q", val)
		}
		clock.advance(time.Minute)
		if val, _ := c.Get(ctx, "k"); val != nil {
			t.Errorf("expected expiry after ttl, got %q", val)
		}
		if size, _ := c.Stats(); size != 0 {
			t.Errorf("expired entry still counted, size %d", size)
		}
	})

	t.Run("Miss", func(t *testing.T) {
		c, _ := newTestLRU(10)
		val, err := c.Get(ctx, "missing")
		if err != nil || val != nil {
			t.Errorf("expected nil, nil for a miss, got %q, %v", val, err)
		}
	})

	t.Run("CounterWindow", func(t *testing.T) {
		c, clock := newTestLRU(10)
		for want := int64(1); want <= 3; want++ {
			if n, _ := c.IncrementCounter(ctx, "hits", time.Minute); n != want {
				t.Fatalf("expected %d, got %d", want, n)
			}
			clock.advance(10 * time.Second)
		}
		// Later increments do not extend the window opened by the first.
		clock.advance(30 * time.Second)
		if n, _ := c.IncrementCounter(ctx, "hits", time.Minute); n != 1 {
			t.Errorf("expected a new window, got %d", n)
		}
	})

	t.Run("ValueAndCounterShareKey", func(t *testing.T) {
		c, _ := newTestLRU(10)
		c.Set(ctx, "k", []byte("v"), time.Minute)
		c.IncrementCounter(ctx, "k", time.Minute)

		if val, _ := c.Get(ctx, "k"); string(val) != "v" {
			t.Errorf("counter clobbered value: %q", val)
		}
		c.Delete(ctx, "k")
		if val, _ := c.Get(ctx, "k"); val != nil {
			t.Error("value survived delete")
		}
		if n, _ := c.IncrementCounter(ctx, "k", time.Minute); n != 1 {
			t.Errorf("counter survived delete, got %d", n)
		}
	})

	t.Run("EvictsLeastRecentlyUsed", func(t *testing.T) {
		c, _ := newTestLRU(2)
		c.Set(ctx, "a", []byte("1"), time.Minute)
		c.IncrementCounter(ctx, "b", time.Minute)
		c.Get(ctx, "a")
		c.Set(ctx, "c", []byte("3"), time.Minute)

		if val, _ := c.Get(ctx, "a"); val == nil {
			t.Error("recently read entry was evicted")
		}
		if n, _ := c.IncrementCounter(ctx, "b", time.Minute); n != 1 {
			t.Errorf("expected counter b evicted, got %d", n)
		}
		if size, capacity := c.Stats(); size != 2 || capacity != 2 {
			t.Errorf("expected 2/2, got %d/%d", size, capacity)
		}
	})

	t.Run("Close", func(t *testing.T) {
		c, _ := newTestLRU(10)
		c.Set(ctx, "k", []byte("v"), time.Minute)
		if err := c.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if size, _ := c.Stats(); size != 0 {
			t.Errorf("expected empty cache after close, got %d", size)
		}
	})
}

func TestTwoPhaseCache(t *testing.T) {
	ctx := context.Background()
	local, clock := newTestLRU(10)
	shared, _ := newTestLRU(10)
	shared.now = clock.now
	c := NewTwoPhaseCache(local, shared, 30*time.Second)

	t.Run("WriteThrough", func(t *testing.T) {
		c.Set(ctx, "k", []byte("v"), time.Hour)
		if val, _ := shared.Get(ctx, "k"); string(val) != "v" {
			t.Errorf("shared store missing value, got %q", val)
		}
	})

	t.Run("LocalCopyExpiresFirst", func(t *testing.T) {
		clock.advance(time.Minute)
		if val, _ := local.Get(ctx, "k"); val != nil {
			t.Errorf("local copy outlived localTTL: %q", val)
		}
		if val, _ := c.Get(ctx, "k"); string(val) != "v" {
			t.Errorf("expected read-through from shared, got %q", val)
		}
		if val, _ := local.Get(ctx, "k"); string(val) != "v" {
			t.Error("read-through did not refill the local copy")
		}
	})

	t.Run("CountersAreShared", func(t *testing.T) {
		c.IncrementCounter(ctx, "lease", time.Minute)
		if n, _ := shared.IncrementCounter(ctx, "lease", time.Minute); n != 2 {
			t.Errorf("expected counter in shared store, got %d", n)
		}
	})

	t.Run("DeleteBoth", func(t *testing.T) {
		c.Delete(ctx, "k")
		if val, _ := c.Get(ctx, "k"); val != nil {
			t.Errorf("value survived delete: %q", val)
		}
	})
}

func TestLease(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestLRU(10)

	first, err := Acquire(ctx, c, "scan", "node-a", time.Minute)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if _, err := Acquire(ctx, c, "scan", "node-b", time.Minute); !errors.Is(err, ErrLeaseHeld) {
		t.Fatalf("expected ErrLeaseHeld, got %v", err)
	}

	info, err := Holder(ctx, c, "scan")
	if err != nil || info == nil || info.Holder != "node-a" {
		t.Fatalf("expected holder node-a, got %+v (%v)", info, err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if info, _ := Holder(ctx, c, "scan"); info != nil {
		t.Errorf("holder survived release: %+v", info)
	}

	t.Run("ExpiresWithoutRelease", func(t *testing.T) {
		if _, err := Acquire(ctx, c, "scan", "node-b", time.Minute); err != nil {
			t.Fatalf("acquire after release failed: %v", err)
		}
		clock.advance(time.Minute)
		if _, err := Acquire(ctx, c, "scan", "node-c", time.Minute); err != nil {
			t.Errorf("expired lease still held: %v", err)
		}
	})

	t.Run("CorruptHolder", func(t *testing.T) {
		c.Set(ctx, "broken:holder", []byte("{"), time.Minute)
		if _, err := Holder(ctx, c, "broken"); err == nil {
			t.Error("expected error for corrupt holder record")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 5})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		lru, ok := c.(*LRUCache)
		if !ok {
			t.Fatalf("expected *LRUCache, got %T", c)
		}
		if _, capacity := lru.Stats(); capacity != 5 {
			t.Errorf("expected capacity 5, got %d", capacity)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})

	t.Run("RedisUnreachable", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "redis", RedisAddr: "127.0.0.1:1"}); err == nil {
			t.Error("expected error for unreachable redis")
		}
	})
}
