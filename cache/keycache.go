package cache

import "sync"

// KeyCache memoizes a total lookup function over a small stable
// keyspace. Unlike TimedCache there is no eviction and no absent
// state: the lookup always yields a value.
type KeyCache[K comparable, V any] struct {
	mu     sync.RWMutex
	lookup func(K) V
	values map[K]V
}

// NewKeyCache creates a KeyCache backed by lookup.
func NewKeyCache[K comparable, V any](lookup func(K) V) *KeyCache[K, V] {
	return &KeyCache[K, V]{
		lookup: lookup,
		values: make(map[K]V),
	}
}

// Get returns the value for key, invoking the lookup on first use.
func (c *KeyCache[K, V]) Get(key K) V {
	c.mu.RLock()
	val, ok := c.values[key]
	c.mu.RUnlock()
	if ok {
		return val
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Lost the race to another looker-upper.
	if val, ok := c.values[key]; ok {
		return val
	}

	val = c.lookup(key)
	c.values[key] = val
	return val
}

// Put stores val under key, superseding the lookup.
func (c *KeyCache[K, V]) Put(key K, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = val
}

// Pop removes key so the next Get re-runs the lookup.
func (c *KeyCache[K, V]) Pop(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	val, ok := c.values[key]
	delete(c.values, key)
	return val, ok
}

// Len returns the number of memoized entries.
func (c *KeyCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
