package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/wippyai/wasi-runner/errors"
)

// PendingOp is a unit of host work driven to completion by the Executor.
type PendingOp interface {
	Execute(ctx context.Context) (uint64, error)
}

// OpFunc adapts an ordinary function to PendingOp.
type OpFunc func(ctx context.Context) (uint64, error)

func (f OpFunc) Execute(ctx context.Context) (uint64, error) {
	return f(ctx)
}

type opResult struct {
	err error
	val uint64
}

type job struct {
	ctx  context.Context
	op   PendingOp
	done chan opResult
}

// Executor runs pending operations one at a time on a single long-lived
// worker goroutine. It is created once per runtime and reused by every host
// call until Close.
type Executor struct {
	work    chan *job
	stopped chan struct{}
	mu      sync.RWMutex
	closed  bool
}

// NewExecutor starts the worker.
func NewExecutor() *Executor {
	e := &Executor{
		work:    make(chan *job),
		stopped: make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *Executor) loop() {
	defer close(e.stopped)
	for j := range e.work {
		j.done <- execute(j)
	}
}

func execute(j *job) (res opResult) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(*errors.Error); ok {
				res = opResult{err: err}
				return
			}
			res = opResult{err: fmt.Errorf("host call panicked: %v", r)}
		}
	}()
	val, err := j.op.Execute(j.ctx)
	return opResult{val: val, err: err}
}

// Run hands op to the worker and blocks until it completes.
// A panic inside op is returned as an error.
func (e *Executor) Run(ctx context.Context, op PendingOp) (uint64, error) {
	j := &job{ctx: ctx, op: op, done: make(chan opResult, 1)}

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return 0, errors.Closed(errors.PhaseSyscall, "executor")
	}
	e.work <- j
	e.mu.RUnlock()

	res := <-j.done
	return res.val, res.err
}

// Close stops the worker after in-flight work finishes. Later Run calls fail.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.work)
	e.mu.Unlock()
	<-e.stopped
}
