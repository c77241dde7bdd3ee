// Package workerpool runs named tasks on a bounded set of workers so that
// blocking calls (stream resolution, transport start) never pile up without
// limit. Tasks carry a context cancelled on shutdown.
//
// Typical usage:
//
//	pool := workerpool.New(4, func(msg string) {
//	    log.Println("POOL:", msg)
//	})
//	_ = pool.Submit("resolve:play", func(ctx context.Context) error {
//	    return doWork(ctx)
//	})
//	// later...
//	pool.Shutdown()
package workerpool

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("worker pool is closed")

// ErrQueueFull is returned when the task backlog is at capacity.
var ErrQueueFull = errors.New("worker pool queue is full")

// StatusReporter receives task lifecycle messages:
//
//	running:resolve:play
//	error:resolve:play:provider unreachable
//	done:resolve:play
type StatusReporter func(string)

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Pool is a fixed-size worker pool with a bounded backlog.
type Pool struct {
	tasks    chan task
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool
	reporter StatusReporter
}

// New starts a pool with the given number of workers. The reporter may be
// nil. The backlog holds up to 4x workers pending tasks.
func New(workers int, reporter StatusReporter) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:    make(chan task, workers*4),
		ctx:      ctx,
		cancel:   cancel,
		reporter: reporter,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.report("running:" + t.name)
		if err := t.fn(p.ctx); err != nil {
			p.report("error:" + t.name + ":" + err.Error())
		} else {
			p.report("done:" + t.name)
		}
	}
}

// Submit queues a task for execution. Returns ErrQueueFull instead of
// blocking when the backlog is at capacity.
func (p *Pool) Submit(name string, fn func(ctx context.Context) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task{name: name, fn: fn}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown cancels the task context, stops accepting work and waits for
// running tasks to finish.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

func (p *Pool) report(s string) {
	if p.reporter != nil {
		p.reporter(s)
	}
}
