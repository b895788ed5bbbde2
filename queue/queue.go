// Package queue provides blocking FIFO queues for batch pipelines.
//
// BlockingQueue is a single-item queue with cooperative blocking reads.
// BulkQueue extends it with atomic multi-item enqueue, drain-all reads,
// consumer-abandonment detection, and non-destructive hibernation of
// pending items to a durable sink. Producers never block; consumers
// block until data arrives, the context expires, or the queue closes.
//
// Absence is a value here: an expired wait returns the zero sentinel,
// never an error.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dailyyoga/datakit/logger"
	"go.uber.org/zap"
)

// BlockingQueue is a FIFO queue with blocking dequeue and liveness
// tracking. The zero value is not usable; use NewBlocking.
type BlockingQueue[T any] struct {
	log  logger.Logger
	name string

	mu     sync.Mutex
	items  []T
	closed bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// lastDrain is the unix-nano timestamp of the last successful
	// dequeue, seeded at construction so a fresh queue is not
	// considered abandoned.
	lastDrain atomic.Int64
}

// NewBlocking creates a BlockingQueue.
func NewBlocking[T any](log logger.Logger, cfg *Config[T]) *BlockingQueue[T] {
	if cfg == nil {
		cfg = DefaultConfig[T]()
	} else {
		cfg = cfg.MergeDefaults()
	}

	q := &BlockingQueue[T]{
		log:  log,
		name: cfg.Name,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	q.lastDrain.Store(time.Now().UnixNano())
	return q
}

// Put appends item to the queue and wakes a blocked consumer. It is a
// silent no-op once the queue is closed.
func (q *BlockingQueue[T]) Put(item T) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.signal()
}

// Get removes and returns the oldest item. It blocks until an item is
// available, ctx expires, or the queue is closed with nothing pending.
// Timeout and closure return (zero, false), never an error. Leftover
// items on a closed queue are still returned until it empties.
func (q *BlockingQueue[T]) Get(ctx context.Context) (T, bool) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()

			q.lastDrain.Store(time.Now().UnixNano())
			if remaining > 0 {
				q.signal()
			}
			return item, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return zero, false
		}

		select {
		case <-q.wake:
		case <-q.done:
		case <-ctx.Done():
			return zero, false
		}
	}
}

// Abandoned reports whether no consumer has successfully drained
// within the last d. A supervising component uses this to detect a
// stalled or crashed consumer without inspecting queue contents.
func (q *BlockingQueue[T]) Abandoned(d time.Duration) bool {
	last := time.Unix(0, q.lastDrain.Load())
	return time.Since(last) > d
}

// Len returns the number of pending items.
func (q *BlockingQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed and wakes all blocked consumers. The
// transition is one-way; further enqueues are silently dropped while
// pending items remain drainable.
func (q *BlockingQueue[T]) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		pending := len(q.items)
		q.mu.Unlock()

		close(q.done)
		q.log.Debug("queue closed",
			zap.String("queue", q.name),
			zap.Int("pending", pending),
		)
	})
}

// signal wakes one waiter; the buffered channel coalesces signals.
func (q *BlockingQueue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
