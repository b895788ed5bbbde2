package ch

import (
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

type Config struct {
	Hosts       []string      `mapstructure:"hosts"`
	Database    string        `mapstructure:"database"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Debug       bool          `mapstructure:"debug"`
	// Server-side settings applied to the connection.
	Settings clickhouse.Settings `mapstructure:"settings"`
	// Batch insert config. Nil disables the Writer.
	WriterConfig *WriterConfig `mapstructure:"writer"`
}

type WriterConfig struct {
	// FlushInterval paces time-triggered flushes.
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	// FlushSize triggers an immediate flush when the buffer reaches it.
	FlushSize int `mapstructure:"flush_size"`
	// MinFlushSize is the minimum batch for a time-triggered flush.
	// Smaller buffers keep accumulating. Zero flushes every interval.
	MinFlushSize int `mapstructure:"min_flush_size"`
	// MaxWaitTime caps how long buffered rows wait below MinFlushSize
	// before flushing anyway. Zero waits indefinitely.
	MaxWaitTime time.Duration `mapstructure:"max_wait_time"`
}

func DefaultConfig() *Config {
	return &Config{
		Database:    "default",
		DialTimeout: 10 * time.Second,
	}
}

// DefaultWriterConfig returns the default writer config.
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		FlushInterval: 10 * time.Second,
		FlushSize:     5000,
		MinFlushSize:  500,
		MaxWaitTime:   60 * time.Second,
	}
}

func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return ErrInvalidConfig("hosts are required")
	}
	if c.Username == "" {
		return ErrInvalidConfig("username is required")
	}
	if c.Password == "" {
		return ErrInvalidConfig("password is required")
	}

	if c.WriterConfig != nil {
		if err := c.WriterConfig.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (w *WriterConfig) Validate() error {
	if w.FlushInterval <= 0 {
		return ErrInvalidConfig("writer.flush_interval is required")
	}
	if w.FlushSize <= 0 {
		return ErrInvalidConfig("writer.flush_size is required")
	}
	if w.MinFlushSize < 0 {
		return ErrInvalidConfig("writer.min_flush_size cannot be negative")
	}
	if w.MinFlushSize > w.FlushSize {
		return ErrInvalidConfig("writer.min_flush_size cannot be greater than writer.flush_size")
	}
	if w.MaxWaitTime < 0 {
		return ErrInvalidConfig("writer.max_wait_time cannot be negative")
	}
	return nil
}
