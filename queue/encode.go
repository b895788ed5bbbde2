package queue

import (
	"encoding/gob"
	"encoding/json"
	"io"
)

// Encoder serializes a hibernation snapshot to a sink. Implementations
// must write the items in the given order; they own the wire format,
// the queue owns only the snapshot semantics.
type Encoder[T any] interface {
	Encode(w io.Writer, items []T) error
}

// JSONEncoder writes one JSON document per line. Line-delimited JSON
// keeps recovery tooling trivial and appends cleanly to an existing
// checkpoint file.
type JSONEncoder[T any] struct{}

func (JSONEncoder[T]) Encode(w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

// GobEncoder writes the snapshot as a single gob-encoded slice, for
// sinks read back by Go tooling only.
type GobEncoder[T any] struct{}

func (GobEncoder[T]) Encode(w io.Writer, items []T) error {
	return gob.NewEncoder(w).Encode(items)
}
