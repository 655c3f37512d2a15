// Package cache provides the capacity bounded mark/sweep cache backing the
// tile scheduler's RAM and GPU tiers.
package cache

import "sort"

// Cache is a keyed store holding at most a configured number of entries.
// Capacity is enforced by Purge only: Insert never evicts, so the cache may
// temporarily hold more than its capacity between two purge cycles. This is
// intentional, it trades memory for not thrashing right after a camera jump.
//
// Eviction is mark/sweep. Visit runs one relevance pass and records, per
// entry, the outcome of the latest pass. Purge removes every entry whose
// latest mark is false or missing, then trims the marked entries down to
// capacity, keeping the most recently marked ones. Ties within one pass are
// broken by insertion recency, newer entries win.
//
// Cache is not safe for concurrent use; the scheduler serializes all access.
type Cache[K comparable, V any] struct {
	capacity  int
	keyOf     func(V) K
	entries   map[K]*entry[V]
	insertSeq uint64
	visitSeq  uint64
}

type entry[V any] struct {
	value     V
	relevant  bool
	markSeq   uint64
	insertSeq uint64
}

type keyedEntry[K comparable, V any] struct {
	key K
	e   *entry[V]
}

// New returns a cache bounded to capacity entries, keyed by keyOf.
func New[K comparable, V any](capacity int, keyOf func(V) K) *Cache[K, V] {
	return &Cache[K, V]{
		capacity: capacity,
		keyOf:    keyOf,
		entries:  make(map[K]*entry[V]),
	}
}

// Insert adds the given values, overwriting any entry with the same key.
// No capacity check is performed.
func (c *Cache[K, V]) Insert(values ...V) {
	for _, v := range values {
		c.insertSeq++
		c.entries[c.keyOf(v)] = &entry[V]{value: v, insertSeq: c.insertSeq}
	}
}

// Contains reports whether an entry with the given key is cached.
func (c *Cache[K, V]) Contains(k K) bool {
	_, ok := c.entries[k]
	return ok
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	return len(c.entries)
}

// Capacity returns the current capacity.
func (c *Cache[K, V]) Capacity() int {
	return c.capacity
}

// SetCapacity updates the capacity used by future purges. It does not evict.
func (c *Cache[K, V]) SetCapacity(capacity int) {
	c.capacity = capacity
}

// Visit runs one relevance pass: predicate is invoked once for every cached
// entry and its outcome replaces the entry's previous mark. Nothing is
// removed.
func (c *Cache[K, V]) Visit(predicate func(V) bool) {
	c.visitSeq++
	for _, e := range c.entries {
		e.relevant = predicate(e.value)
		if e.relevant {
			e.markSeq = c.visitSeq
		}
	}
}

// Purge removes and returns every entry that is not marked relevant, plus the
// least recently marked relevant entries exceeding capacity. Afterwards the
// cache holds at most Capacity entries.
func (c *Cache[K, V]) Purge() []V {
	var removed []V

	kept := make([]keyedEntry[K, V], 0, len(c.entries))
	for k, e := range c.entries {
		if !e.relevant {
			removed = append(removed, e.value)
			delete(c.entries, k)
			continue
		}
		kept = append(kept, keyedEntry[K, V]{key: k, e: e})
	}

	if len(kept) <= c.capacity {
		return removed
	}

	sort.Slice(kept, func(i, j int) bool {
		a, b := kept[i].e, kept[j].e
		if a.markSeq != b.markSeq {
			return a.markSeq > b.markSeq
		}
		return a.insertSeq > b.insertSeq
	})

	for _, k := range kept[c.capacity:] {
		removed = append(removed, k.e.value)
		delete(c.entries, k.key)
	}
	return removed
}
