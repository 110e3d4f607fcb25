package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a size-bounded cache whose entries also expire.
type LRU[V any] struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

func NewLRU[V any](maxEntries int) *LRU[V] {
	if maxEntries <= 0 {
		return nil
	}

	return &LRU[V]{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

func (c *LRU[V]) Get(key string, now time.Time) (V, bool) {
	var zero V

	if c == nil || key == "" {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	e, ok := elem.Value.(*entry[V])
	if !ok {
		return zero, false
	}

	if now.After(e.expiresAt) {
		c.removeElement(elem)

		return zero, false
	}

	c.order.MoveToFront(elem)

	return e.value, true
}

func (c *LRU[V]) Set(key string, value V, expiresAt time.Time, now time.Time) {
	if c == nil || key == "" || expiresAt.IsZero() {
		return
	}

	if !expiresAt.After(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		e, castOk := elem.Value.(*entry[V])
		if !castOk {
			return
		}

		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(elem)

		return
	}

	elem := c.order.PushFront(&entry[V]{
		key:       key,
		value:     value,
		expiresAt: expiresAt,
	})
	c.entries[key] = elem

	c.evictExpiredLocked(now)
	c.enforceSizeLimitLocked()
}

func (c *LRU[V]) Delete(key string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeElement(elem)
	}
}

func (c *LRU[V]) Len() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

func (c *LRU[V]) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()

		if e, ok := elem.Value.(*entry[V]); ok && now.After(e.expiresAt) {
			c.removeElement(elem)
		}
		elem = prev
	}
}

func (c *LRU[V]) enforceSizeLimitLocked() {
	for len(c.entries) > c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}
		c.removeElement(elem)
	}
}

func (c *LRU[V]) removeElement(elem *list.Element) {
	e, ok := elem.Value.(*entry[V])
	if !ok {
		return
	}

	delete(c.entries, e.key)
	c.order.Remove(elem)
}
