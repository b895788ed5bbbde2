package store

import (
	"context"
	"fmt"
	"sync"
)

// memoryStore is a mutex-guarded in-memory Store, used in tests and as
// a stand-in during development.
type memoryStore struct {
	mu       sync.RWMutex
	entities map[string]*Entity
}

// NewMemory creates an empty in-memory Store.
func NewMemory() Store {
	return &memoryStore{
		entities: make(map[string]*Entity),
	}
}

func (s *memoryStore) GetByID(ctx context.Context, id string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, nil
	}
	return e.Clone(), nil
}

func (s *memoryStore) GetByProp(ctx context.Context, prop string, value any) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Compare stringified values, matching how the SQL store matches
	// against JSON_UNQUOTE output.
	want := fmt.Sprintf("%v", value)
	for _, e := range s.entities {
		if v, ok := e.Props[prop]; ok && fmt.Sprintf("%v", v) == want {
			return e.Clone(), nil
		}
	}
	return nil, nil
}

func (s *memoryStore) SetProps(ctx context.Context, e *Entity, props map[string]any) error {
	if e == nil {
		return ErrNilEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entities[e.ID]
	if !ok {
		return ErrUnknownEntity(e.ID)
	}
	for k, v := range props {
		stored.Props[k] = v
	}
	return nil
}

func (s *memoryStore) Add(ctx context.Context, e *Entity) error {
	if e == nil {
		return ErrNilEntity
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = e.Clone()
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}
