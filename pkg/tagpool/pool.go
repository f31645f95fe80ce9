package tagpool

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tagpool/tagpool/pkg/config"
	"github.com/tagpool/tagpool/pkg/corelog"
	"github.com/tagpool/tagpool/pkg/failfast"
)

// Pool is the tagged elastic worker pool: SlotLedger for admission,
// an Executor for running work, and a resultPump that routes every
// completion back to a callback or the iteration queue.
type Pool struct {
	ledger   *SlotLedger
	executor Executor
	pump     *resultPump
	queue    *resultQueue
	tracer   *tracer
	logger   corelog.Logger
	metrics  *Metrics

	mu      sync.Mutex
	stopped bool
}

// Option configures optional Pool behavior.
type Option func(*poolOptions)

type poolOptions struct {
	metrics         *Metrics
	tracerProvider  trace.TracerProvider
	logger          corelog.Logger
	defaultOnData   func(any)
	defaultOnError  func(error)
}

// WithMetrics attaches a Metrics instance; every admit, release, and
// resize updates it.
func WithMetrics(m *Metrics) Option {
	return func(o *poolOptions) { o.metrics = m }
}

// WithTracerProvider sets the OpenTelemetry TracerProvider used for the
// per-task "tagpool.task" span. Defaults to otel's global provider, which
// is a no-op unless one has been installed with otel.SetTracerProvider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *poolOptions) { o.tracerProvider = tp }
}

// WithLogger overrides the Pool's logger. Defaults to
// corelog.NewDefaultLogger().
func WithLogger(l corelog.Logger) Option {
	return func(o *poolOptions) { o.logger = l }
}

// WithDefaultCallback sets the pool-wide success callback. When set,
// NextContext returns ErrIterationDisabled and Next reports false, since
// every successful
// outcome without a per-task callback is routed here instead of the
// Result queue.
func WithDefaultCallback(f func(any)) Option {
	return func(o *poolOptions) { o.defaultOnData = f }
}

// WithDefaultErrorCallback sets the pool-wide failure callback.
func WithDefaultErrorCallback(f func(error)) Option {
	return func(o *poolOptions) { o.defaultOnError = f }
}

// TaskOption configures a single Put/TryPut/Ingest call.
type TaskOption func(*task)

// WithTaskCallback sets the per-task success callback.
func WithTaskCallback(onData func(any)) TaskOption {
	return func(t *task) { t.onData = onData }
}

// WithTaskErrorCallback sets the per-task failure callback.
func WithTaskErrorCallback(onError func(error)) TaskOption {
	return func(t *task) { t.onError = onError }
}

// New builds a Pool from an initial {tag: reserved} mapping. The
// generic tag is accepted as a key; if absent it defaults to reserved
// 0.
func New(tags map[Tag]int, executor Executor, opts ...Option) (*Pool, error) {
	failfast.NotNil(executor, "executor")

	var o poolOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = corelog.NewDefaultLogger()
	}

	ledger := NewSlotLedger(tags)
	queue := newResultQueue()
	pump := newResultPump(ledger, queue, o.metrics, o.defaultOnData, o.defaultOnError)

	p := &Pool{
		ledger:   ledger,
		executor: executor,
		pump:     pump,
		queue:    queue,
		tracer:   newTracer(o.tracerProvider),
		logger:   o.logger,
		metrics:  o.metrics,
	}
	if p.metrics != nil {
		p.metrics.snapshotSlots(ledger.Snapshot())
	}
	return p, nil
}

// NewFromConfig builds a Pool from a PoolConfig, typically loaded via
// pkg/config. The config is validated before any tag is created: Generic
// and every group size must be non-negative.
func NewFromConfig(cfg PoolConfig, executor Executor, opts ...Option) (*Pool, error) {
	mgr := config.NewManager(&cfg)
	mgr.AddValidator(config.RangeValidator("Generic", 0, math.MaxInt32))
	if err := mgr.Validate(); err != nil {
		return nil, fmt.Errorf("tagpool: invalid config: %w", err)
	}
	for name, size := range cfg.Groups {
		if size < 0 {
			return nil, fmt.Errorf("tagpool: invalid config: group %q has negative size %d", name, size)
		}
	}

	tags := make(map[Tag]int, len(cfg.Groups)+1)
	for name, size := range cfg.Groups {
		tags[NewTag(name)] = size
	}
	tags[Generic] = cfg.Generic
	return New(tags, executor, opts...)
}

func (p *Pool) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Put is synchronous admission: it blocks until tag admits a slot (own
// reserve or a generic borrow), then hands the task to the Executor.
func (p *Pool) Put(tag Tag, fn Func, args []any, opts ...TaskOption) (TaskHandle, error) {
	if fn == nil {
		return TaskHandle{}, ErrNilFunc
	}
	if p.isStopped() {
		return TaskHandle{}, ErrPoolStopped
	}

	t := newTask(tag, fn, args, nil, nil)
	for _, opt := range opts {
		opt(t)
	}

	outcome, err := p.ledger.AdmitBlocking(tag, p.isStopped)
	if err != nil {
		return TaskHandle{}, err
	}
	t.borrowed = outcome.Borrowed
	p.afterAdmit(t)
	return t.handle(), nil
}

// TryPut is a non-blocking admission attempt: it returns (handle, true,
// nil) on success or (zero handle, false, nil) if no slot is free right
// now, alongside the blocking Put.
func (p *Pool) TryPut(tag Tag, fn Func, args []any, opts ...TaskOption) (TaskHandle, bool, error) {
	if fn == nil {
		return TaskHandle{}, false, ErrNilFunc
	}
	if p.isStopped() {
		return TaskHandle{}, false, ErrPoolStopped
	}

	t := newTask(tag, fn, args, nil, nil)
	for _, opt := range opts {
		opt(t)
	}

	outcome := p.ledger.TryAdmit(tag)
	if !outcome.Admitted {
		if p.metrics != nil {
			p.metrics.recordRejection(tag)
		}
		return TaskHandle{}, false, nil
	}
	t.borrowed = outcome.Borrowed
	p.afterAdmit(t)
	return t.handle(), true, nil
}

// afterAdmit records metrics, increments pending, and hands the task to
// the Executor. Called immediately after a successful admission from
// either Put or TryPut.
func (p *Pool) afterAdmit(t *task) {
	if p.metrics != nil {
		p.metrics.recordAdmission(t.tag, t.borrowed)
		p.metrics.snapshotSlots(p.ledger.Snapshot())
	}
	p.pump.admitted()
	p.runTask(t)
}

// runTask hands t to the Executor and wires its Completion to the
// result pump. A rejection from the Executor itself (e.g. a closed
// executor) is routed as a task failure rather than silently dropped,
// since an admitted task must yield exactly one completion.
func (p *Pool) runTask(t *task) {
	_, span := p.tracer.startTaskSpan(context.Background(), t.id.String(), t.tag.String())

	completion, err := p.executor.Run(t.fn, t.args)
	if err != nil {
		endTaskSpan(span, err)
		p.routeCompletion(t, nil, err)
		return
	}
	completion.OnComplete(func(value any, err error) {
		endTaskSpan(span, err)
		p.routeCompletion(t, value, err)
	})
}

// routeCompletion runs the result pump and, once the pool is stopped
// and idle, closes the Result queue so any blocked Next/NextContext
// call observes termination instead of waiting forever.
func (p *Pool) routeCompletion(t *task, value any, err error) {
	if err != nil {
		p.logger.Debugf("tagpool: task %s tag=%s failed: %v", t.id, t.tag, err)
	}
	p.pump.route(t, value, err)
	if p.metrics != nil {
		p.metrics.snapshotSlots(p.ledger.Snapshot())
	}
	if p.isStopped() && p.pump.pendingCount() == 0 {
		p.queue.Close()
	}
}

// Ingest performs asynchronous bulk submission from items, calling
// fn(item, extraArgs...) under tag for each. Because Put blocks until a
// slot exists, the returned handle's producer goroutine is naturally
// backpressured: items is not drained faster than tasks are admitted.
func (p *Pool) Ingest(ctx context.Context, tag Tag, items <-chan any, fn Func, extraArgs []any, opts ...TaskOption) *IngestHandle {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case item, ok := <-items:
				if !ok {
					return nil
				}
				args := append([]any{item}, extraArgs...)
				if _, err := p.Put(tag, fn, args, opts...); err != nil {
					return err
				}
			}
		}
	})
	return &IngestHandle{g: g}
}

// IngestHandle observes an in-progress Ingest call.
type IngestHandle struct {
	g *errgroup.Group
}

// Wait blocks until the source channel is exhausted and every item it
// produced has been admitted, returning the first error encountered
// (context cancellation or ErrPoolStopped).
func (h *IngestHandle) Wait() error {
	return h.g.Wait()
}

// Adjust resizes tag's reservation, optionally moving slots to/from the
// generic reserve, and wakes admission waiters on success.
func (p *Pool) Adjust(tag Tag, newSize int, useGenericSlots bool) (ResizeReport, error) {
	report, err := p.ledger.Resize(tag, newSize, useGenericSlots)
	if err != nil {
		return ResizeReport{}, err
	}
	if p.metrics != nil {
		p.metrics.snapshotSlots(p.ledger.Snapshot())
	}
	return report, nil
}

// Join blocks until pending reaches 0.
func (p *Pool) Join() {
	p.pump.waitUntilIdle()
}

// JoinContext is Join bounded by ctx.
func (p *Pool) JoinContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pump.waitUntilIdle()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop refuses further admissions. If drain, it first waits for pending
// to reach 0 before tearing down the Executor; otherwise in-flight
// tasks are left to finish on their own with no forced cancellation.
func (p *Pool) Stop(drain bool) error {
	return p.StopContext(context.Background(), drain)
}

// StopContext is Stop bounded by ctx when drain is true.
func (p *Pool) StopContext(ctx context.Context, drain bool) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	p.ledger.Broadcast()

	if drain {
		if err := p.JoinContext(ctx); err != nil {
			return err
		}
	}
	if p.pump.pendingCount() == 0 {
		p.queue.Close()
	}
	return p.executor.Shutdown(drain)
}

// Next returns the next completed success outcome from the Result
// queue, or (zero, false) once iteration has terminated. Queued outcomes
// that carry a task error are discarded, not returned. It panics
// nothing and simply reports false if iteration is disabled; callers
// that need to distinguish "disabled" from "terminated" should use
// NextContext.
func (p *Pool) Next() (Outcome, bool) {
	o, ok, err := p.NextContext(context.Background())
	if err != nil {
		return Outcome{}, false
	}
	return o, ok
}

// NextContext is Next with explicit disabled/cancellation errors.
// Iteration terminates (returns false, nil) when the Result queue is
// empty, pending is 0, and the pool has been stopped.
func (p *Pool) NextContext(ctx context.Context) (Outcome, bool, error) {
	if p.pump.onData != nil {
		return Outcome{}, false, ErrIterationDisabled
	}
	for {
		if o, ok := p.queue.TryPop(); ok {
			if o.Err != nil {
				continue
			}
			return o, true, nil
		}
		if p.isStopped() && p.pump.pendingCount() == 0 {
			// Each outcome is pushed before its pending decrement, so a
			// push that landed after the TryPop above is visible now.
			if p.queue.Len() > 0 {
				continue
			}
			return Outcome{}, false, nil
		}
		select {
		case <-ctx.Done():
			return Outcome{}, false, ctx.Err()
		default:
		}

		woke := make(chan struct{})
		go func() {
			p.queue.Wait()
			close(woke)
		}()
		select {
		case <-woke:
		case <-ctx.Done():
			return Outcome{}, false, ctx.Err()
		}
	}
}

// Pending returns the count of tasks admitted but not yet routed.
func (p *Pool) Pending() int {
	return p.pump.pendingCount()
}

// Tags returns a snapshot of each tag's reserved count.
func (p *Pool) Tags() map[Tag]int {
	snap := p.ledger.Snapshot()
	out := make(map[Tag]int, len(snap))
	for tag, counts := range snap {
		out[tag] = counts.Reserved
	}
	return out
}
