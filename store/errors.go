package store

import "fmt"

var (
	// ErrNilEntity is returned when a nil entity is passed to a write.
	ErrNilEntity = fmt.Errorf("store: nil entity")
)

// ErrInvalidConfig reports a storage configuration error.
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("store: invalid config: %s", msg)
}

// ErrConnection wraps a database connection failure.
func ErrConnection(err error) error {
	return fmt.Errorf("store: connection failed: %w", err)
}

// ErrUnknownEntity reports a write against an entity that does not exist.
func ErrUnknownEntity(id string) error {
	return fmt.Errorf("store: unknown entity %s", id)
}

// ErrQuery wraps a storage query failure.
func ErrQuery(err error) error {
	return fmt.Errorf("store: query failed: %w", err)
}

// ErrEncodeProps wraps a property serialization failure.
func ErrEncodeProps(id string, err error) error {
	return fmt.Errorf("store: encode props for entity %s failed: %w", id, err)
}
