package cache

import (
	"testing"
	"time"
)

func TestLRUGetSet(t *testing.T) {
	c := NewLRU[string](2)
	if c == nil {
		t.Fatalf("expected cache instance")
	}

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	c.Set("key", "value", now.Add(time.Hour), now)

	got, ok := c.Get("key", now)
	if !ok {
		t.Fatalf("expected cached value to be present")
	}

	if got != "value" {
		t.Fatalf("unexpected value: %q", got)
	}
}

func TestLRUExpiresEntries(t *testing.T) {
	c := NewLRU[string](2)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	c.Set("key", "value", now.Add(time.Minute), now)

	if _, ok := c.Get("key", now.Add(2*time.Minute)); ok {
		t.Fatalf("expected cache entry to expire")
	}

	if len(c.entries) != 0 {
		t.Fatalf("expected expired cache entry to be removed")
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	expiresAt := now.Add(time.Hour)

	c.Set("a", 1, expiresAt, now)
	c.Set("b", 2, expiresAt, now)

	if _, ok := c.Get("a", now); !ok {
		t.Fatalf("expected entry a to exist before eviction check")
	}

	c.Set("c", 3, expiresAt, now)

	if _, ok := c.Get("a", now); !ok {
		t.Fatalf("expected entry a to remain after evicting least recently used")
	}

	if _, ok := c.Get("b", now); ok {
		t.Fatalf("expected entry b to be evicted")
	}

	if _, ok := c.Get("c", now); !ok {
		t.Fatalf("expected entry c to be cached")
	}
}

func TestLRUNilIsSafe(t *testing.T) {
	var c *LRU[string]
	now := time.Now()

	c.Set("key", "value", now.Add(time.Hour), now)
	c.Delete("key")

	if _, ok := c.Get("key", now); ok {
		t.Fatalf("nil cache must not return values")
	}

	if c.Len() != 0 {
		t.Fatalf("nil cache must be empty")
	}
}
