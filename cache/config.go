package cache

import "time"

// TimedCacheConfig holds configuration for TimedCache.
type TimedCacheConfig struct {
	// Name identifies the cache in logs and event fields (required).
	Name string `mapstructure:"name"`
	// MaxAge evicts entries not read or written for this long. Zero
	// disables eviction. Sweeps run every MaxAge/10, bounding eviction
	// latency to 10% overshoot without sweeping too often.
	MaxAge time.Duration `mapstructure:"max_age"`
}

// Validate validates the configuration.
func (c *TimedCacheConfig) Validate() error {
	if c.Name == "" {
		return ErrInvalidConfig("name is required")
	}
	if c.MaxAge < 0 {
		return ErrInvalidConfig("max_age cannot be negative")
	}
	return nil
}
