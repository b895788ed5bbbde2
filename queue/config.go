package queue

import "time"

// Config holds configuration shared by BlockingQueue and BulkQueue.
type Config[T any] struct {
	// Name identifies the queue in logs.
	// default: "queue"
	Name string `mapstructure:"name"`
	// Encoder serializes hibernation snapshots (BulkQueue only).
	// default: JSONEncoder
	Encoder Encoder[T]
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig[T any]() *Config[T] {
	return &Config[T]{
		Name:    "queue",
		Encoder: JSONEncoder[T]{},
	}
}

// MergeDefaults returns a copy of c with zero fields filled from
// DefaultConfig.
func (c *Config[T]) MergeDefaults() *Config[T] {
	out := *c
	defaults := DefaultConfig[T]()
	if out.Name == "" {
		out.Name = defaults.Name
	}
	if out.Encoder == nil {
		out.Encoder = defaults.Encoder
	}
	return &out
}

// WatchdogConfig holds configuration for a queue Watchdog.
type WatchdogConfig struct {
	// Grace is how long the queue may go undrained before it is
	// considered abandoned (required).
	Grace time.Duration `mapstructure:"grace"`
	// CheckInterval is how often the watchdog re-checks.
	// default: Grace / 2, at least 10ms
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// MergeDefaults returns a copy of c with zero fields filled.
func (c *WatchdogConfig) MergeDefaults() *WatchdogConfig {
	out := *c
	if out.CheckInterval == 0 {
		out.CheckInterval = out.Grace / 2
	}
	if out.CheckInterval < 10*time.Millisecond {
		out.CheckInterval = 10 * time.Millisecond
	}
	return &out
}

// Validate checks that the configuration is usable.
func (c *WatchdogConfig) Validate() error {
	if c.Grace <= 0 {
		return ErrInvalidConfig("grace must be greater than 0")
	}
	if c.CheckInterval < 0 {
		return ErrInvalidConfig("check_interval cannot be negative")
	}
	return nil
}
