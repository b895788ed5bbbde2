package bus

import "fmt"

var (
	// ErrForwarderClosed is returned when producing through a closed forwarder.
	ErrForwarderClosed = fmt.Errorf("bus: forwarder is closed")
)

// ErrInvalidConfig reports a forwarder configuration error.
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("bus: invalid config: %s", msg)
}

// ErrConnection wraps a Kafka connection failure.
func ErrConnection(err error) error {
	return fmt.Errorf("bus: kafka connection failed: %w", err)
}

// ErrEncode wraps an event serialization failure.
func ErrEncode(topic string, err error) error {
	return fmt.Errorf("bus: encode event for topic %s failed: %w", topic, err)
}
