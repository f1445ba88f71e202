// Package cache provides the bounded, TTL-aware LRU cache that sits in front
// of the report pipeline.
package cache

import (
	"strings"
	"sync"
	"time"
)

const (
	// DefaultMaxSize is the capacity used for the report cache.
	DefaultMaxSize = 50
	// DefaultTTL is the lifetime of an entry set without an explicit TTL.
	DefaultTTL = 15 * time.Minute
)

// Config configures a Cache. Zero values select the defaults above.
type Config struct {
	MaxSize int
	TTL     time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
	Size      int
}

type entry[V any] struct {
	key      string
	value    V
	storedAt time.Time
	ttl      time.Duration
	prev     *entry[V]
	next     *entry[V]
}

// Cache is a thread-safe least-recently-used cache with per-entry TTL.
//
// Entries live in a doubly linked list ordered by the last Get hit or Set
// that touched them: head.next is the most recent, tail.prev the least.
// Expired entries are only removed when a Get finds them.
type Cache[V any] struct {
	mu sync.Mutex

	maxSize int
	ttl     time.Duration
	now     func() time.Time

	items map[string]*entry[V]
	head  *entry[V]
	tail  *entry[V]

	hits, misses, evictions, expired int64
}

// New creates a Cache.
func New[V any](cfg Config) *Cache[V] {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Cache[V]{
		maxSize: cfg.MaxSize,
		ttl:     cfg.TTL,
		now:     cfg.Now,
		items:   make(map[string]*entry[V], cfg.MaxSize),
		head:    &entry[V]{},
		tail:    &entry[V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the value stored under key if present and not expired.
// A hit marks the entry most recently used.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}

	if c.now().Sub(e.storedAt) > e.ttl {
		c.remove(e)
		c.expired++
		c.misses++
		return zero, false
	}

	c.moveToFront(e)
	c.hits++
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, 0)
}

// SetWithTTL stores value under key. A ttl <= 0 selects the default TTL.
// When the cache is full and key is new, the least recently used entry is
// evicted first.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if e, ok := c.items[key]; ok {
		e.value = value
		e.storedAt = now
		e.ttl = ttl
		c.moveToFront(e)
		return
	}

	if len(c.items) >= c.maxSize {
		if lru := c.tail.prev; lru != c.head {
			c.remove(lru)
			c.evictions++
		}
	}

	e := &entry[V]{key: key, value: value, storedAt: now, ttl: ttl}
	c.pushFront(e)
	c.items[key] = e
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return false
	}
	c.remove(e)
	return true
}

// Clear removes every entry. Counters are kept.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry[V], c.maxSize)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Len returns the number of stored entries, including expired entries that
// have not been accessed since they expired.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Expired:   c.expired,
		Size:      len(c.items),
	}
}

// Must be called with c.mu held.
func (c *Cache[V]) pushFront(e *entry[V]) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *Cache[V]) moveToFront(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.pushFront(e)
}

func (c *Cache[V]) remove(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
	delete(c.items, e.key)
}

// ReportKey builds the cache key for a report query. The query is trimmed
// and lower-cased so equivalent requests share an entry.
func ReportKey(kind, query string) string {
	return "report:" + kind + ":" + strings.ToLower(strings.TrimSpace(query))
}
