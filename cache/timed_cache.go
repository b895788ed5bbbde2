package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dailyyoga/datakit/bus"
	"github.com/dailyyoga/datakit/logger"
	"github.com/dailyyoga/datakit/sched"
	"go.uber.org/zap"
)

// entry pairs a value with its last-hit timestamp. The timestamp is
// atomic so the read path can bump it under the shared read lock.
type entry[V any] struct {
	val     V
	lastHit atomic.Int64
}

// TimedCache is a key/value cache with an optional miss resolver,
// optional max-age eviction, and bus notifications on put/flush/pop.
//
// Reads and writes on distinct keys do not serialize; only miss
// resolution and removal share a cache-wide lock, which guarantees a
// resolver runs at most once per miss and that a popped key cannot be
// resurrected by an in-flight resolution.
type TimedCache[K comparable, V any] struct {
	log logger.Logger
	bus bus.Bus
	sch sched.Scheduler

	name   string
	maxAge time.Duration

	mu      sync.RWMutex
	entries map[K]*entry[V]

	// missMu serializes miss resolution, removal, and hook updates.
	missMu  sync.Mutex
	onMiss  MissFunc[K, V]
	onFlush FlushFunc[K, V]

	sweepMu sync.Mutex
	sweep   sched.Handle

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewTimed creates a TimedCache. When cfg.MaxAge is set the eviction
// sweep is armed immediately on the scheduler.
func NewTimed[K comparable, V any](log logger.Logger, b bus.Bus, sch sched.Scheduler, cfg *TimedCacheConfig) (*TimedCache[K, V], error) {
	if cfg == nil {
		return nil, ErrInvalidConfig("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxAge > 0 && sch == nil {
		return nil, ErrInvalidConfig("scheduler is required when max_age is set")
	}

	c := &TimedCache[K, V]{
		log:     log,
		bus:     b,
		sch:     sch,
		name:    cfg.Name,
		maxAge:  cfg.MaxAge,
		entries: make(map[K]*entry[V]),
	}

	if c.maxAge > 0 {
		c.scheduleSweep()
	}
	return c, nil
}

// SetOnMiss sets the resolver invoked for absent keys. Concurrent
// misses for the same cache serialize and resolve at most once.
func (c *TimedCache[K, V]) SetOnMiss(fn MissFunc[K, V]) {
	c.missMu.Lock()
	defer c.missMu.Unlock()
	c.onMiss = fn
}

// SetOnFlush sets the hook invoked with present entries on Flush, Pop,
// Clear, and Close, before the cache:flush event fires.
func (c *TimedCache[K, V]) SetOnFlush(fn FlushFunc[K, V]) {
	c.missMu.Lock()
	defer c.missMu.Unlock()
	c.onFlush = fn
}

// Get returns the cached value for key, bumping its last-hit time. On
// a miss with no resolver it returns the absent sentinel (zero, false,
// nil). With a resolver, the miss resolves under the cache-wide lock
// and the result is stored, negative results included; resolver errors
// propagate unmodified and nothing is stored.
func (c *TimedCache[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var zero V

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		e.lastHit.Store(time.Now().UnixNano())
		return e.val, true, nil
	}

	c.missMu.Lock()
	defer c.missMu.Unlock()

	// A concurrent populator may have won the race.
	c.mu.RLock()
	e, ok = c.entries[key]
	c.mu.RUnlock()
	if ok {
		e.lastHit.Store(time.Now().UnixNano())
		return e.val, true, nil
	}

	if c.onMiss == nil {
		return zero, false, nil
	}

	val, err := c.onMiss(ctx, key)
	if err != nil {
		return zero, false, err
	}

	c.store(key, val)
	c.publish(TopicPut, key, val)
	return val, true, nil
}

// Put unconditionally stores val under key.
func (c *TimedCache[K, V]) Put(key K, val V) {
	c.store(key, val)
	c.publish(TopicPut, key, val)
}

// Pop removes and returns the value for key. Absent keys return the
// no-value sentinel, not an error; the flush and pop events fire
// either way, matching eviction observers that key on the events.
func (c *TimedCache[K, V]) Pop(key K) (V, bool) {
	c.missMu.Lock()
	defer c.missMu.Unlock()
	return c.popLocked(key)
}

// popLocked removes key while missMu is held.
func (c *TimedCache[K, V]) popLocked(key K) (V, bool) {
	var val V

	c.mu.Lock()
	e, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if ok {
		val = e.val
		if c.onFlush != nil {
			c.onFlush(key, val)
		}
	}
	c.publish(TopicFlush, key, val)
	c.publish(TopicPop, key, val)
	return val, ok
}

// Flush publishes the current value for key without removing it, so
// observers can persist a dirty entry independently of eviction.
func (c *TimedCache[K, V]) Flush(key K) (V, bool) {
	c.missMu.Lock()
	defer c.missMu.Unlock()
	return c.flushLocked(key)
}

func (c *TimedCache[K, V]) flushLocked(key K) (V, bool) {
	var val V

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		val = e.val
		if c.onFlush != nil {
			c.onFlush(key, val)
		}
	}
	c.publish(TopicFlush, key, val)
	return val, ok
}

// Clear flushes every key, then removes all entries.
func (c *TimedCache[K, V]) Clear() {
	c.missMu.Lock()
	defer c.missMu.Unlock()

	for _, key := range c.keysSnapshot() {
		c.flushLocked(key)
	}

	c.mu.Lock()
	c.entries = make(map[K]*entry[V])
	c.mu.Unlock()
}

// Keys returns a snapshot of the cached keys.
func (c *TimedCache[K, V]) Keys() []K {
	return c.keysSnapshot()
}

// Values returns a snapshot of the cached values.
func (c *TimedCache[K, V]) Values() []V {
	c.mu.RLock()
	defer c.mu.RUnlock()

	vals := make([]V, 0, len(c.entries))
	for _, e := range c.entries {
		vals = append(vals, e.val)
	}
	return vals
}

// Len returns the number of cached entries.
func (c *TimedCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close pops every remaining key so observers can persist state, then
// cancels the sweep. One-way; safe to call more than once.
func (c *TimedCache[K, V]) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		c.missMu.Lock()
		for _, key := range c.keysSnapshot() {
			c.popLocked(key)
		}
		c.missMu.Unlock()

		c.sweepMu.Lock()
		if c.sch != nil {
			c.sch.Cancel(c.sweep)
		}
		c.sweepMu.Unlock()

		c.log.Debug("cache closed", zap.String("cache", c.name))
	})
}

func (c *TimedCache[K, V]) store(key K, val V) {
	e := &entry[V]{val: val}
	e.lastHit.Store(time.Now().UnixNano())

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

func (c *TimedCache[K, V]) keysSnapshot() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]K, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

func (c *TimedCache[K, V]) publish(topic string, key K, val V) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(topic, bus.Fields{
		"cache": c.name,
		"key":   key,
		"val":   val,
	})
}

// scheduleSweep arms the next eviction pass.
func (c *TimedCache[K, V]) scheduleSweep() {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	if c.closed.Load() {
		return
	}
	c.sweep = c.sch.After(c.maxAge/10, c.sweepPass)
}

// sweepPass pops every entry past max age, then re-arms itself.
func (c *TimedCache[K, V]) sweepPass() {
	if c.closed.Load() {
		return
	}

	cutoff := time.Now().Add(-c.maxAge).UnixNano()

	c.mu.RLock()
	var expired []K
	for k, e := range c.entries {
		if e.lastHit.Load() < cutoff {
			expired = append(expired, k)
		}
	}
	c.mu.RUnlock()

	for _, k := range expired {
		c.Pop(k)
	}
	if len(expired) > 0 {
		c.log.Debug("swept expired entries",
			zap.String("cache", c.name),
			zap.Int("evicted", len(expired)),
		)
	}

	c.scheduleSweep()
}
