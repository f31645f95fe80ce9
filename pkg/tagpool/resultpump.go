package tagpool

import "sync"

// resultPump implements the five-step completion handling. route,
// release, pendingDecrement, and the join/ingest wakeups it triggers
// are always executed in that exact order, serialised by pumpMu so a
// callback observing pending never sees a value inconsistent with "this
// task counted" (the invariant the ordering exists to protect).
type resultPump struct {
	ledger  *SlotLedger
	queue   *resultQueue
	metrics *Metrics // nil if metrics are disabled

	onData  func(any)
	onError func(error)

	pumpMu sync.Mutex

	pendingMu   sync.Mutex
	pendingCond *sync.Cond
	pending     int
}

func newResultPump(ledger *SlotLedger, queue *resultQueue, metrics *Metrics, onData func(any), onError func(error)) *resultPump {
	p := &resultPump{
		ledger:  ledger,
		queue:   queue,
		metrics: metrics,
		onData:  onData,
		onError: onError,
	}
	p.pendingCond = sync.NewCond(&p.pendingMu)
	return p
}

// admitted records one more in-flight task, for Pending()/Join().
func (p *resultPump) admitted() {
	p.pendingMu.Lock()
	p.pending++
	if p.metrics != nil {
		p.metrics.setPending(p.pending)
	}
	p.pendingMu.Unlock()
}

func (p *resultPump) pendingCount() int {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return p.pending
}

// waitUntilIdle blocks until pending reaches 0, per Join().
func (p *resultPump) waitUntilIdle() {
	p.pendingMu.Lock()
	for p.pending > 0 {
		p.pendingCond.Wait()
	}
	p.pendingMu.Unlock()
}

// route runs the five completion steps for one finished task.
func (p *resultPump) route(t *task, value any, err error) {
	p.pumpMu.Lock()
	defer p.pumpMu.Unlock()

	// Step 1: (T, wasBorrowed) is already on the task record.
	tag, wasBorrowed := t.tag, t.borrowed

	// Step 2: route before anything else observes this task as settled.
	routeLabel := p.dispatch(t, value, err)
	if p.metrics != nil {
		p.metrics.recordRoute(routeLabel)
		if err != nil {
			p.metrics.recordFailure(tag)
		}
	}

	// Step 3.
	p.ledger.Release(tag, wasBorrowed)

	// Step 4.
	p.pendingMu.Lock()
	p.pending--
	remaining := p.pending
	if p.metrics != nil {
		p.metrics.setPending(remaining)
	}
	p.pendingMu.Unlock()

	// Step 5: join waiters, and (via Release's own broadcast above)
	// admission waiters including any ingestion producer.
	p.pendingCond.Broadcast()
}

// dispatch performs step 2's branch and reports which route was taken.
func (p *resultPump) dispatch(t *task, value any, err error) string {
	switch {
	case err != nil && t.onError != nil:
		t.onError(err)
		return "callback"
	case err == nil && t.onData != nil:
		t.onData(value)
		return "callback"
	case err == nil && p.onData != nil:
		p.onData(value)
		return "pool_default"
	case err != nil && p.onError != nil:
		p.onError(err)
		return "pool_default"
	default:
		p.queue.Push(Outcome{TaskID: t.id, Tag: t.tag, Value: value, Err: err})
		return "queue"
	}
}
