package cache

import (
	"context"
	"testing"

	"github.com/dailyyoga/datakit/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st := store.NewMemory()
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	if err := st.Add(ctx, &store.Entity{
		ID:    "e1",
		Props: map[string]any{"name": "alpha", "score": 1},
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := st.Add(ctx, &store.Entity{
		ID:    "e2",
		Props: map[string]any{"name": "beta", "score": 2},
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return st
}

func TestEntityCache_MissResolvesFromStore(t *testing.T) {
	st := newTestStore(t)
	c, err := NewEntity(testLogger(t), nil, nil, st, &TimedCacheConfig{Name: "entities"})
	if err != nil {
		t.Fatalf("NewEntity failed: %v", err)
	}
	defer c.Close()

	e, ok, err := c.Get(context.Background(), "e1")
	if err != nil || !ok || e == nil || e.Props["name"] != "alpha" {
		t.Fatalf("Get(e1) = (%+v, %v, %v)", e, ok, err)
	}
}

func TestEntityCache_AbsentIsNegativeEntry(t *testing.T) {
	st := newTestStore(t)
	c, err := NewEntity(testLogger(t), nil, nil, st, &TimedCacheConfig{Name: "entities"})
	if err != nil {
		t.Fatalf("NewEntity failed: %v", err)
	}
	defer c.Close()

	e, ok, err := c.Get(context.Background(), "missing")
	if err != nil || !ok || e != nil {
		t.Fatalf("Get(missing) = (%+v, %v, %v), want cached nil", e, ok, err)
	}

	// The negative entry must be served from cache, not the store:
	// adding the entity now must not change the answer.
	st.Add(context.Background(), &store.Entity{ID: "missing", Props: map[string]any{}})
	if e, _, _ := c.Get(context.Background(), "missing"); e != nil {
		t.Error("negative entry not cached")
	}
}

func TestEntityCache_WriteBackOnPop(t *testing.T) {
	st := newTestStore(t)
	c, err := NewEntity(testLogger(t), nil, nil, st, &TimedCacheConfig{Name: "entities"})
	if err != nil {
		t.Fatalf("NewEntity failed: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	e, _, _ := c.Get(ctx, "e1")
	e.Props["score"] = 99
	c.Pop("e1")

	stored, err := st.GetByID(ctx, "e1")
	if err != nil || stored == nil {
		t.Fatalf("GetByID = (%+v, %v)", stored, err)
	}
	if stored.Props["score"] != 99 {
		t.Errorf("score = %v after write-back, want 99", stored.Props["score"])
	}
}

func TestEntityCache_WriteBackOnClose(t *testing.T) {
	st := newTestStore(t)
	c, err := NewEntity(testLogger(t), nil, nil, st, &TimedCacheConfig{Name: "entities"})
	if err != nil {
		t.Fatalf("NewEntity failed: %v", err)
	}
	ctx := context.Background()

	e, _, _ := c.Get(ctx, "e2")
	e.Props["score"] = 7
	c.Close()

	stored, _ := st.GetByID(ctx, "e2")
	if stored.Props["score"] != 7 {
		t.Errorf("score = %v after Close, want 7", stored.Props["score"])
	}
}

func TestEntityCache_WriteBack_NilEntity(t *testing.T) {
	st := newTestStore(t)
	c, err := NewEntity(testLogger(t), nil, nil, st, &TimedCacheConfig{Name: "entities"})
	if err != nil {
		t.Fatalf("NewEntity failed: %v", err)
	}
	defer c.Close()

	c.Get(context.Background(), "missing")
	// Popping a negative entry must not hit the store.
	c.Pop("missing")
}

func TestNewEntity_NilStore(t *testing.T) {
	if _, err := NewEntity(testLogger(t), nil, nil, nil, &TimedCacheConfig{Name: "c"}); err == nil {
		t.Error("expected error for nil store")
	}
}

func TestEntityPropCache_MissByProp(t *testing.T) {
	st := newTestStore(t)
	c, err := NewEntityProp(testLogger(t), nil, nil, st, "name", &TimedCacheConfig{Name: "by-name"})
	if err != nil {
		t.Fatalf("NewEntityProp failed: %v", err)
	}
	defer c.Close()

	e, ok, err := c.Get(context.Background(), "beta")
	if err != nil || !ok || e == nil || e.ID != "e2" {
		t.Fatalf("Get(beta) = (%+v, %v, %v), want e2", e, ok, err)
	}
}

func TestEntityPropCache_WriteBackTargetsEntityID(t *testing.T) {
	st := newTestStore(t)
	c, err := NewEntityProp(testLogger(t), nil, nil, st, "name", &TimedCacheConfig{Name: "by-name"})
	if err != nil {
		t.Fatalf("NewEntityProp failed: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	e, _, _ := c.Get(ctx, "alpha")
	e.Props["score"] = 41
	c.Pop("alpha")

	// The write lands on e1, keyed by the entity's own id, not on an
	// entity named "alpha".
	stored, _ := st.GetByID(ctx, "e1")
	if stored.Props["score"] != 41 {
		t.Errorf("score = %v after write-back, want 41", stored.Props["score"])
	}
}

func TestEntityPropCache_GetByValue(t *testing.T) {
	st := newTestStore(t)
	c, err := NewEntityProp(testLogger(t), nil, nil, st, "score", &TimedCacheConfig{Name: "by-score"})
	if err != nil {
		t.Fatalf("NewEntityProp failed: %v", err)
	}
	defer c.Close()

	e, ok, err := c.GetByValue(context.Background(), 2)
	if err != nil || !ok || e == nil || e.ID != "e2" {
		t.Fatalf("GetByValue(2) = (%+v, %v, %v), want e2", e, ok, err)
	}
}

func TestNewEntityProp_MissingProp(t *testing.T) {
	st := newTestStore(t)
	if _, err := NewEntityProp(testLogger(t), nil, nil, st, "", &TimedCacheConfig{Name: "c"}); err == nil {
		t.Error("expected error for empty prop")
	}
}
