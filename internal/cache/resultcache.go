// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tablescope/tablescope/internal/metrics"
	"github.com/tablescope/tablescope/internal/models"
)

// resultEntry is a node in the result cache's doubly-linked LRU list.
type resultEntry struct {
	key       string
	value     *models.PageResult
	prev      *resultEntry
	next      *resultEntry
	expiresAt time.Time
}

// ResultCache memoizes computed pages keyed by the query key. It
// combines an LRU list with TTL expiry and a singleflight group, so a
// given key is computed at most once no matter how many requests race
// on it. Failed computations are never stored.
//
// Invalidation bumps a generation counter. The counter is part of the
// flight key and is re-checked before storing, so a computation started
// against a replaced dataset can neither be joined by fresh requests
// nor populate the cache.
type ResultCache struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration

	items map[string]*resultEntry

	// head.next is most recently used, tail.prev is least recently used.
	head *resultEntry
	tail *resultEntry

	generation uint64

	group singleflight.Group

	hits   int64
	misses int64
}

// ResultStats is a point-in-time snapshot of cache counters.
type ResultStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// NewResultCache creates a ResultCache with the given capacity and TTL.
func NewResultCache(capacity int, ttl time.Duration) *ResultCache {
	if capacity <= 0 {
		capacity = 128
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	c := &ResultCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*resultEntry, capacity),
		head:     &resultEntry{},
		tail:     &resultEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// ComputeFunc produces the page for a key on cache miss.
type ComputeFunc func(ctx context.Context) (*models.PageResult, error)

// GetOrCompute returns the cached page for key, computing and storing
// it on miss. The cached return reports whether the value was served
// from the store without running compute.
func (c *ResultCache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (*models.PageResult, bool, error) {
	if v, ok := c.lookup(key); ok {
		return v, true, nil
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	flightKey := flightKeyFor(gen, key)
	v, err, _ := c.group.Do(flightKey, func() (interface{}, error) {
		// A concurrent flight for the same key may have finished
		// between our lookup and joining this one.
		if cached, ok := c.lookup(key); ok {
			return flightResult{value: cached, fromCache: true}, nil
		}

		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		c.store(gen, key, result)
		return flightResult{value: result}, nil
	})
	if err != nil {
		return nil, false, err
	}

	fr := v.(flightResult)
	return fr.value, fr.fromCache, nil
}

type flightResult struct {
	value     *models.PageResult
	fromCache bool
}

func flightKeyFor(gen uint64, key string) string {
	// Fixed-width hex keeps gen/key boundaries unambiguous.
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16, 17+len(key))
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[gen&0xf]
		gen >>= 4
	}
	buf = append(buf, ':')
	return string(append(buf, key...))
}

// lookup returns the live entry for key, promoting it to most recently
// used. Expired entries are removed and counted as misses.
func (c *ResultCache) lookup(key string) (*models.PageResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		c.misses++
		metrics.CacheMisses.Inc()
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.removeEntry(entry)
		c.misses++
		metrics.CacheMisses.Inc()
		return nil, false
	}

	c.moveToFront(entry)
	c.hits++
	metrics.CacheHits.Inc()
	return entry.value, true
}

// store inserts a computed result, evicting the least recently used
// entries over capacity. Results computed before an invalidation are
// discarded.
func (c *ResultCache) store(gen uint64, key string, value *models.PageResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}

	if entry, ok := c.items[key]; ok {
		entry.value = value
		entry.expiresAt = time.Now().Add(c.ttl)
		c.moveToFront(entry)
		return
	}

	entry := &resultEntry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.addToFront(entry)
	c.items[key] = entry

	for len(c.items) > c.capacity {
		c.evictOldest()
	}

	metrics.CacheEntries.Set(float64(len(c.items)))
}

// InvalidateAll drops every entry and bumps the generation so in-flight
// computations cannot repopulate the cache with stale pages.
func (c *ResultCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.items = make(map[string]*resultEntry, c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head

	metrics.CacheEntries.Set(0)
	metrics.CacheInvalidations.Inc()
}

// Len returns the current number of live entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns hit/miss counters and the entry count.
func (c *ResultCache) Stats() ResultStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ResultStats{Hits: c.hits, Misses: c.misses, Entries: len(c.items)}
}

// List manipulation. Callers hold c.mu.

func (c *ResultCache) addToFront(entry *resultEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *ResultCache) moveToFront(entry *resultEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *ResultCache) removeEntry(entry *resultEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

func (c *ResultCache) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
