package queue

import (
	"sync"
	"time"

	"github.com/dailyyoga/datakit/logger"
	"github.com/dailyyoga/datakit/sched"
	"go.uber.org/zap"
)

// Watchdog supervises a BulkQueue and invokes a recovery callback when
// the queue is abandoned, i.e. no consumer has drained it within the
// configured grace period. Recovery (re-dispatch, failover) is the
// callback's concern; the watchdog only detects and reports.
type Watchdog[T any] struct {
	log   logger.Logger
	queue *BulkQueue[T]
	sch   sched.Scheduler

	grace     time.Duration
	interval  time.Duration
	onAbandon func()

	mu      sync.Mutex
	handle  sched.Handle
	stopped bool
}

// NewWatchdog starts supervising q. onAbandon runs on the scheduler's
// goroutine each time an abandonment check trips.
func NewWatchdog[T any](log logger.Logger, sch sched.Scheduler, q *BulkQueue[T], cfg *WatchdogConfig, onAbandon func()) (*Watchdog[T], error) {
	if cfg == nil {
		cfg = &WatchdogConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.MergeDefaults()

	if onAbandon == nil {
		return nil, ErrInvalidConfig("abandon callback is required")
	}

	w := &Watchdog[T]{
		log:       log,
		queue:     q,
		sch:       sch,
		grace:     cfg.Grace,
		interval:  cfg.CheckInterval,
		onAbandon: onAbandon,
	}
	w.arm()
	return w, nil
}

// Stop ends supervision. Safe to call more than once.
func (w *Watchdog[T]) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.stopped = true
	w.sch.Cancel(w.handle)
}

func (w *Watchdog[T]) arm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.handle = w.sch.After(w.interval, w.check)
}

func (w *Watchdog[T]) check() {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}

	if w.queue.Abandoned(w.grace) {
		w.log.Warn("queue abandoned, triggering recovery",
			zap.String("queue", w.queue.name),
			zap.Duration("grace", w.grace),
			zap.Int("pending", w.queue.Len()),
		)
		w.onAbandon()
	}

	w.arm()
}
