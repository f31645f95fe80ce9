package tagpool

import (
	"context"
	"errors"
	"sync"

	"github.com/tagpool/tagpool/pkg/corelog"
	"github.com/tagpool/tagpool/pkg/worker"
)

// goroutineCompletion is a Completion backed by a mutex-guarded result
// slot: whichever of "the task finishes" or "OnComplete is called"
// happens second triggers the observer, so registration and completion
// can race freely.
type goroutineCompletion struct {
	mu       sync.Mutex
	done     bool
	value    any
	err      error
	observer func(any, error)
}

func (c *goroutineCompletion) OnComplete(observer func(value any, err error)) {
	c.mu.Lock()
	if c.done {
		value, err := c.value, c.err
		c.mu.Unlock()
		observer(value, err)
		return
	}
	c.observer = observer
	c.mu.Unlock()
}

func (c *goroutineCompletion) complete(value any, err error) {
	c.mu.Lock()
	c.done = true
	c.value, c.err = value, err
	observer := c.observer
	c.mu.Unlock()

	if observer != nil {
		observer(value, err)
	}
}

// goroutineExecutor is tagpool's default Executor: a fixed-size
// goroutine pool (pkg/worker) with a bounded job queue.
type goroutineExecutor struct {
	pool   *worker.Pool
	logger corelog.Logger
}

// GoroutineExecutorConfig configures NewGoroutineExecutor.
type GoroutineExecutorConfig struct {
	// Workers is the number of worker goroutines. Defaults to 1 if <= 0.
	Workers int
	// QueueSize bounds how many submitted-but-not-yet-running jobs may
	// queue up. Defaults to 64 if <= 0.
	QueueSize int
	// Logger receives a debug line whenever a task's Func returns an
	// error or panics. Defaults to corelog.NewDefaultLogger() if nil.
	Logger corelog.Logger
}

// NewGoroutineExecutor builds the default in-process Executor.
func NewGoroutineExecutor(cfg GoroutineExecutorConfig) Executor {
	if cfg.Logger == nil {
		cfg.Logger = corelog.NewDefaultLogger()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &goroutineExecutor{
		pool:   worker.NewPool(cfg.Workers, cfg.QueueSize),
		logger: cfg.Logger,
	}
}

func (e *goroutineExecutor) Run(fn Func, args []any) (Completion, error) {
	c := &goroutineCompletion{}

	err := e.pool.Submit(worker.Job{
		Ctx: context.Background(),
		Fn: func(ctx context.Context) (any, error) {
			return fn(ctx, args...)
		},
		Done: func(value any, err error) {
			if err != nil {
				e.logger.Debugf("tagpool: task completed with error: %v", err)
			}
			c.complete(value, err)
		},
	})
	if err != nil {
		if errors.Is(err, worker.ErrStopped) {
			return nil, ErrExecutorClosed
		}
		return nil, err
	}
	return c, nil
}

func (e *goroutineExecutor) Shutdown(drain bool) error {
	// worker.Pool.Stop already waits for in-flight jobs on every worker
	// goroutine to finish before returning; there is nothing additional
	// to do for drain=true beyond what PoolCore.Stop already arranged
	// (it waits for pending==0 before calling Shutdown at all).
	_ = drain
	e.pool.Stop()
	return nil
}
