// Package store provides entity storage behind the caches.
//
// An Entity is an identified bag of properties. The Store contract is
// deliberately small: the entity caches only need miss resolution
// (fetch by id or by indexed property) and write-back (persist mutated
// properties on flush). Absence is reported as (nil, nil), never as an
// error.
package store

import "context"

// Entity is an identified property bag.
type Entity struct {
	ID    string
	Props map[string]any
}

// Clone returns a deep-enough copy: the props map is copied, values
// are shared.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	props := make(map[string]any, len(e.Props))
	for k, v := range e.Props {
		props[k] = v
	}
	return &Entity{ID: e.ID, Props: props}
}

// Store is the entity storage contract consumed by the entity caches.
type Store interface {
	// GetByID returns the entity with the given id, or (nil, nil) if
	// absent.
	GetByID(ctx context.Context, id string) (*Entity, error)

	// GetByProp returns the first entity whose property prop equals
	// value, or (nil, nil) if none matches.
	GetByProp(ctx context.Context, prop string, value any) (*Entity, error)

	// SetProps merges props into the stored entity and persists it.
	SetProps(ctx context.Context, e *Entity, props map[string]any) error

	// Add persists a new entity.
	Add(ctx context.Context, e *Entity) error

	// Close releases underlying resources.
	Close() error
}
