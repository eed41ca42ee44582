// Package tasks runs user-command work off the UI thread and hands results
// back to it.
//
// A Pool runs blocking work (CLI calls, trash, LLM requests) on a bounded set
// of goroutines. A Mailbox carries closures back to the host's main loop,
// which is the only place UI state may be touched.
package tasks

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/entrhq/margin/pkg/logging"
)

// DefaultLimit bounds concurrently running tasks.
const DefaultLimit = 4

// Func is one unit of work. A returned error is logged; it never stops other
// tasks.
type Func func(ctx context.Context) error

// Pool runs tasks with bounded concurrency. Teardown does not wait for
// in-flight tasks unless Wait is called.
type Pool struct {
	ctx    context.Context
	group  *errgroup.Group
	logger logging.Sink

	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	running map[string]string // task id -> name
}

// NewPool creates a pool running at most limit tasks at once. limit <= 0
// uses DefaultLimit.
func NewPool(ctx context.Context, limit int, logger logging.Sink) *Pool {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = logging.Nop()
	}

	g := &errgroup.Group{}
	g.SetLimit(limit)

	return &Pool{
		ctx:     ctx,
		group:   g,
		logger:  logger,
		running: make(map[string]string),
	}
}

// Go schedules fn and returns its task id. When the pool is saturated the
// task is queued rather than blocking the caller. Returns "" after Close.
func (p *Pool) Go(name string, fn Func) string {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warnf("Dropping task %s: pool closed", name)
		return ""
	}
	id := ulid.Make().String()
	p.running[id] = name
	p.wg.Add(1)
	p.mu.Unlock()

	task := func() error {
		defer p.wg.Done()
		defer p.finish(id)
		p.run(id, name, fn)
		return nil // task errors are logged, not propagated
	}

	if !p.group.TryGo(task) {
		go p.group.Go(task)
	}
	return id
}

func (p *Pool) run(id, name string, fn Func) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("Task %s (%s) panicked: %v\n%s", name, id, r, debug.Stack())
		}
	}()

	p.logger.Debugf("Task %s (%s) started", name, id)
	if err := fn(p.ctx); err != nil {
		p.logger.Errorf("Task %s (%s) failed: %v", name, id, err)
		return
	}
	p.logger.Debugf("Task %s (%s) finished", name, id)
}

func (p *Pool) finish(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.running, id)
}

// Running returns the names of tasks that are queued or running, by id.
func (p *Pool) Running() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]string, len(p.running))
	for id, name := range p.running {
		out[id] = name
	}
	return out
}

// Close stops accepting tasks. In-flight tasks keep running.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// Wait blocks until every scheduled task, including queued ones, has
// finished or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tasks: wait: %w", ctx.Err())
	}
}
