// Package cache provides miss-driven caches for the data platform.
//
// The cache package follows kit conventions:
// - Interface-driven collaborators (bus.Bus, sched.Scheduler, store.Store)
// - Uses logger.Logger for unified logging
// - Configuration with validation and defaults
// - Structured error handling
//
// Available implementations:
// - TimedCache: key/value cache with optional miss resolver, max-age
//   eviction sweeps, and bus notifications on put/flush/pop
// - EntityCache / EntityPropCache: TimedCache specializations that
//   resolve misses from a store.Store and write mutated properties
//   back on flush
// - OnDemand: per-name lazy resolver map, each resolver runs at most once
// - KeyCache: lookup-function-backed cache for small stable keyspaces
// - Redis: thin client for the shared Redis tier
package cache

import "context"

// Event topics published by TimedCache.
const (
	// TopicPut fires after a value is stored, by Put or miss resolution.
	TopicPut = "cache:put"
	// TopicFlush fires when a value should be persisted by observers,
	// before eviction or on explicit Flush.
	TopicFlush = "cache:flush"
	// TopicPop fires after a value is removed.
	TopicPop = "cache:pop"
)

// MissFunc resolves a value for an absent key. Returning a zero value
// with a nil error stores a negative entry.
type MissFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// FlushFunc observes a flush of a present entry, before the bus event
// fires. Entity caches use it for write-back.
type FlushFunc[K comparable, V any] func(key K, val V)
