package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dailyyoga/datakit/bus"
	"github.com/dailyyoga/datakit/logger"
	"github.com/dailyyoga/datakit/sched"
	"github.com/dailyyoga/datakit/store"
	"go.uber.org/zap"
)

// writeBackTimeout bounds a single flush-driven persist.
const writeBackTimeout = 5 * time.Second

// EntityCache caches store entities by id. Misses resolve from the
// store; flushed entries write their properties back, so callers may
// mutate a cached entity's Props and rely on eviction (or Close) to
// persist them.
type EntityCache struct {
	*TimedCache[string, *store.Entity]

	log logger.Logger
	st  store.Store
}

// NewEntity creates an EntityCache over st.
func NewEntity(log logger.Logger, b bus.Bus, sch sched.Scheduler, st store.Store, cfg *TimedCacheConfig) (*EntityCache, error) {
	if st == nil {
		return nil, ErrInvalidConfig("store is required")
	}

	tc, err := NewTimed[string, *store.Entity](log, b, sch, cfg)
	if err != nil {
		return nil, err
	}

	ec := &EntityCache{TimedCache: tc, log: log, st: st}
	tc.SetOnMiss(func(ctx context.Context, id string) (*store.Entity, error) {
		return st.GetByID(ctx, id)
	})
	tc.SetOnFlush(ec.writeBack)
	return ec, nil
}

// writeBack persists a flushed entity's properties. Negative entries
// (nil entity) have nothing to persist. The store write keys on the
// entity's own id, so the same hook serves caches keyed by id or by
// property value.
func (ec *EntityCache) writeBack(key string, e *store.Entity) {
	if e == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeBackTimeout)
	defer cancel()

	if err := ec.st.SetProps(ctx, e, e.Props); err != nil {
		ec.log.Error("entity write-back failed",
			zap.String("key", key),
			zap.String("id", e.ID),
			zap.Error(err),
		)
	}
}

// EntityPropCache caches store entities by the value of one indexed
// property. Write-back behaves as in EntityCache: it targets the
// entity's id regardless of the property the cache is keyed on.
type EntityPropCache struct {
	*EntityCache

	prop string
}

// NewEntityProp creates an EntityPropCache over st keyed by prop.
func NewEntityProp(log logger.Logger, b bus.Bus, sch sched.Scheduler, st store.Store, prop string, cfg *TimedCacheConfig) (*EntityPropCache, error) {
	if prop == "" {
		return nil, ErrInvalidConfig("prop is required")
	}

	ec, err := NewEntity(log, b, sch, st, cfg)
	if err != nil {
		return nil, err
	}

	pc := &EntityPropCache{EntityCache: ec, prop: prop}
	ec.SetOnMiss(func(ctx context.Context, val string) (*store.Entity, error) {
		return st.GetByProp(ctx, prop, val)
	})
	return pc, nil
}

// GetByValue is Get with a non-string property value, stringified the
// way the store indexes it.
func (pc *EntityPropCache) GetByValue(ctx context.Context, val any) (*store.Entity, bool, error) {
	return pc.Get(ctx, fmt.Sprintf("%v", val))
}
