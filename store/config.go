package store

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Config is the configuration for the MySQL-backed store.
type Config struct {
	// Host is the database host.
	Host string `mapstructure:"host"`
	// Port is the database port.
	// default: 3306
	Port int `mapstructure:"port"`
	// User is the database user.
	User string `mapstructure:"user"`
	// Password is the database password.
	Password string `mapstructure:"password"`
	// Database is the schema name.
	Database string `mapstructure:"database"`
	// Table is the entity table name.
	// default: "entities"
	Table string `mapstructure:"table"`
	// MaxOpenConns is the maximum number of open connections.
	// default: 25
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// MaxIdleConns is the maximum number of idle connections.
	// default: 10
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// ConnMaxLifetime is the maximum lifetime of a connection.
	// default: 1800s
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// LogLevel is the gorm log level: silent, error, warn, info.
	// default: "warn"
	LogLevel string `mapstructure:"log_level"`
	// SlowThreshold marks queries slower than this as slow in logs.
	// default: 1s
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	// Charset is the connection charset.
	// default: "utf8mb4"
	Charset string `mapstructure:"charset"`
}

// DSN builds the MySQL data source name.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Charset,
	)
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:            3306,
		Table:           "entities",
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 1800 * time.Second,
		LogLevel:        "warn",
		SlowThreshold:   time.Second,
		Charset:         "utf8mb4",
	}
}

// MergeDefaults returns a copy of c with zero fields filled from
// DefaultConfig.
func (c *Config) MergeDefaults() *Config {
	out := *c
	defaults := DefaultConfig()
	if out.Port == 0 {
		out.Port = defaults.Port
	}
	if out.Table == "" {
		out.Table = defaults.Table
	}
	if out.MaxOpenConns == 0 {
		out.MaxOpenConns = defaults.MaxOpenConns
	}
	if out.MaxIdleConns == 0 {
		out.MaxIdleConns = defaults.MaxIdleConns
	}
	if out.ConnMaxLifetime == 0 {
		out.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
	if out.LogLevel == "" {
		out.LogLevel = defaults.LogLevel
	}
	if out.SlowThreshold == 0 {
		out.SlowThreshold = defaults.SlowThreshold
	}
	if out.Charset == "" {
		out.Charset = defaults.Charset
	}
	return &out
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Host == "" {
		return ErrInvalidConfig("host is required")
	}
	if c.Port <= 0 {
		return ErrInvalidConfig("port is required")
	}
	if c.User == "" {
		return ErrInvalidConfig("user is required")
	}
	if c.Database == "" {
		return ErrInvalidConfig("database is required")
	}

	validLogLevels := []string{"silent", "error", "warn", "info"}
	if !slices.ContainsFunc(validLogLevels, func(level string) bool {
		return strings.EqualFold(c.LogLevel, level)
	}) {
		return ErrInvalidConfig(fmt.Sprintf("log_level %q must be one of: %s", c.LogLevel, strings.Join(validLogLevels, ", ")))
	}
	return nil
}
