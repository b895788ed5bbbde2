package queue

import "fmt"

// ErrInvalidConfig reports a queue configuration error.
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("queue: invalid config: %s", msg)
}

// ErrHibernate wraps a hibernation encoding failure.
func ErrHibernate(name string, err error) error {
	return fmt.Errorf("queue: hibernate %s failed: %w", name, err)
}
