package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Dispatcher runs executions as independent goroutines under one root context.
// At most limit run at once; a panic in one is logged and never reaches its siblings.
type Dispatcher struct {
	root   context.Context
	cancel context.CancelFunc
	slots  *semaphore.Weighted
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewDispatcher(limit int64, logger *slog.Logger) *Dispatcher {
	if limit <= 0 {
		limit = 1
	}

	root, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		root:   root,
		cancel: cancel,
		slots:  semaphore.NewWeighted(limit),
		logger: logger.With("module", "dispatcher"),
	}
}

// Go returns immediately. run receives the root context once a slot is free;
// rejected is called instead when the dispatcher shuts down first.
func (d *Dispatcher) Go(run func(ctx context.Context), rejected func(err error)) {
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		if err := d.slots.Acquire(d.root, 1); err != nil {
			if rejected != nil {
				rejected(fmt.Errorf("dispatcher stopped: %w", err))
			}

			return
		}
		defer d.slots.Release(1)

		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Execution panicked", "panic", r, "stack", string(debug.Stack()))
			}
		}()

		run(d.root)
	}()
}

// Wait blocks until every dispatched execution has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown cancels every in-flight execution and waits for them to return.
func (d *Dispatcher) Shutdown() {
	d.cancel()
	d.wg.Wait()
}
