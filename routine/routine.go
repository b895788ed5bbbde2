// Package routine provides safe goroutine execution with panic recovery.
//
// Background loops in this kit (cache sweeps, queue drainers, event
// forwarders) are started through this package so a panic in one of
// them is logged instead of crashing the process.
package routine

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/dailyyoga/datakit/logger"
	"go.uber.org/zap"
)

// Runner executes functions in goroutines with panic recovery and
// tracks them for shutdown.
type Runner interface {
	// Go executes fn in a new goroutine with panic recovery.
	Go(fn func())

	// GoNamed executes fn in a new goroutine; name appears in panic logs.
	GoNamed(name string, fn func())

	// GoNamedWithContext executes fn with ctx in a new goroutine.
	GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context))

	// Wait blocks until every goroutine started by this runner returns.
	Wait()
}

type defaultRunner struct {
	log logger.Logger
	wg  sync.WaitGroup
}

// New creates a Runner logging recovered panics through log.
func New(log logger.Logger) Runner {
	return &defaultRunner{log: log}
}

func (r *defaultRunner) Go(fn func()) {
	r.GoNamed("", fn)
}

func (r *defaultRunner) GoNamed(name string, fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer recoverWithLog(r.log, name)
		fn()
	}()
}

func (r *defaultRunner) GoNamedWithContext(ctx context.Context, name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer recoverWithLog(r.log, name)
		fn(ctx)
	}()
}

func (r *defaultRunner) Wait() {
	r.wg.Wait()
}

// Go executes fn in a new goroutine with panic recovery.
func Go(log logger.Logger, fn func()) {
	go func() {
		defer recoverWithLog(log, "")
		fn()
	}()
}

// GoNamed executes a named fn in a new goroutine with panic recovery.
func GoNamed(log logger.Logger, name string, fn func()) {
	go func() {
		defer recoverWithLog(log, name)
		fn()
	}()
}

// GoNamedWithContext executes a named fn with ctx in a new goroutine
// with panic recovery.
func GoNamedWithContext(ctx context.Context, log logger.Logger, name string, fn func(ctx context.Context)) {
	go func() {
		defer recoverWithLog(log, name)
		fn(ctx)
	}()
}

func recoverWithLog(log logger.Logger, name string) {
	if rec := recover(); rec != nil {
		fields := []zap.Field{
			zap.Any("panic", rec),
			zap.String("stack", string(debug.Stack())),
		}
		if name != "" {
			fields = append([]zap.Field{zap.String("routine", name)}, fields...)
		}
		log.Error("goroutine panicked", fields...)
	}
}
