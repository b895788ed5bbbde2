package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrNoResolver is returned by OnDemand.Get for a name with no
	// registered resolver. Match with errors.Is.
	ErrNoResolver = errors.New("cache: no resolver registered")
)

// ErrInvalidConfig reports a cache configuration error.
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("cache: invalid config: %s", msg)
}

// ErrUnknownName wraps ErrNoResolver with the offending name.
func ErrUnknownName(name string) error {
	return fmt.Errorf("%w for %q", ErrNoResolver, name)
}

// ErrConnection wraps a Redis connection failure.
func ErrConnection(err error) error {
	return fmt.Errorf("cache: connection failed: %w", err)
}
