package queue

import (
	"context"
	"io"
	"time"

	"github.com/dailyyoga/datakit/logger"
	"go.uber.org/zap"
)

// BulkQueue is a BlockingQueue with atomic batch enqueue, drain-all
// dequeue, and non-destructive hibernation. FIFO order is preserved
// across Put, Extend, and Hibernate boundaries.
type BulkQueue[T any] struct {
	*BlockingQueue[T]
	enc Encoder[T]
}

// NewBulk creates a BulkQueue.
func NewBulk[T any](log logger.Logger, cfg *Config[T]) *BulkQueue[T] {
	if cfg == nil {
		cfg = DefaultConfig[T]()
	} else {
		cfg = cfg.MergeDefaults()
	}

	return &BulkQueue[T]{
		BlockingQueue: NewBlocking[T](log, cfg),
		enc:           cfg.Encoder,
	}
}

// Extend appends items as one indivisible batch: no interleaving with
// a concurrent Extend or Put is visible to a reader. A silent no-op
// once the queue is closed.
func (q *BulkQueue[T]) Extend(items []T) {
	if len(items) == 0 {
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, items...)
	q.mu.Unlock()
	q.signal()
}

// Get blocks until at least one item is pending, then atomically
// drains and returns the entire pending contents in enqueue order.
// Timeout and closure-with-nothing-pending return nil.
func (q *BulkQueue[T]) Get(ctx context.Context) []T {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			items := q.items
			q.items = nil
			q.mu.Unlock()

			q.lastDrain.Store(time.Now().UnixNano())
			return items
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil
		}

		select {
		case <-q.wake:
		case <-q.done:
		case <-ctx.Done():
			return nil
		}
	}
}

// Hibernate serializes the current pending items to w without removing
// them: a checkpoint for crash recovery, decoupled from draining. The
// snapshot is taken under the queue lock; encoding runs outside it.
// Durability of the sink (flush, fsync) is the caller's concern.
func (q *BulkQueue[T]) Hibernate(w io.Writer) error {
	q.mu.Lock()
	snapshot := make([]T, len(q.items))
	copy(snapshot, q.items)
	q.mu.Unlock()

	if err := q.enc.Encode(w, snapshot); err != nil {
		return ErrHibernate(q.name, err)
	}

	q.log.Debug("queue hibernated",
		zap.String("queue", q.name),
		zap.Int("items", len(snapshot)),
	)
	return nil
}
