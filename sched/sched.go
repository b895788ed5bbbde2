// Package sched provides deferred and periodic task scheduling.
//
// It backs the time-driven maintenance in this kit: cache eviction
// sweeps re-arm themselves with After, and coarse recurring jobs run
// from cron specs via Every. Callbacks execute with panic recovery so
// a failing job cannot take down the scheduler.
package sched

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/dailyyoga/datakit/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Handle identifies scheduled work for cancellation.
type Handle struct {
	id       uint64
	entry    cron.EntryID
	periodic bool
}

// Scheduler runs callbacks after a delay or on a recurring schedule.
type Scheduler interface {
	// After runs fn once after delay. The returned Handle cancels the
	// pending run; firing or cancellation consumes it.
	After(delay time.Duration, fn func()) Handle

	// Every runs fn on a cron schedule. The spec uses the 6-field
	// format with seconds, or descriptors such as "@every 1m".
	Every(spec string, fn func()) (Handle, error)

	// Cancel stops the work identified by h. Unknown or already-fired
	// handles are ignored.
	Cancel(h Handle)

	// Close cancels all pending work and waits for running cron jobs.
	// One-way; After becomes a no-op afterwards.
	Close()
}

type scheduler struct {
	log  logger.Logger
	cron *cron.Cron

	mu     sync.Mutex
	timers map[uint64]*time.Timer
	seq    uint64
	closed bool

	closeOnce sync.Once
}

// New creates a started Scheduler.
func New(log logger.Logger) Scheduler {
	s := &scheduler{
		log:    log,
		cron:   cron.New(cron.WithSeconds()),
		timers: make(map[uint64]*time.Timer),
	}
	s.cron.Start()
	return s
}

func (s *scheduler) After(delay time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Handle{}
	}

	s.seq++
	id := s.seq

	s.timers[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		s.run(fn)
	})

	return Handle{id: id}
}

func (s *scheduler) Every(spec string, fn func()) (Handle, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return Handle{}, ErrSchedulerClosed
	}

	entry, err := s.cron.AddFunc(spec, func() { s.run(fn) })
	if err != nil {
		return Handle{}, ErrInvalidSpec(spec, err)
	}
	return Handle{entry: entry, periodic: true}, nil
}

func (s *scheduler) Cancel(h Handle) {
	if h.periodic {
		s.cron.Remove(h.entry)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[h.id]; ok {
		t.Stop()
		delete(s.timers, h.id)
	}
}

func (s *scheduler) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for id, t := range s.timers {
			t.Stop()
			delete(s.timers, id)
		}
		s.mu.Unlock()

		ctx := s.cron.Stop()
		<-ctx.Done()
	})
}

// run executes a callback with panic recovery.
func (s *scheduler) run(fn func()) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("scheduled task panicked",
				zap.Any("panic", rec),
				zap.String("stack", string(debug.Stack())),
				zap.Duration("elapsed", time.Since(start)),
			)
		}
	}()
	fn()

	if elapsed := time.Since(start); elapsed > time.Second {
		s.log.Warn("scheduled task ran long", zap.Duration("elapsed", elapsed))
	}
}
