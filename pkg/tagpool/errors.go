package tagpool

import "errors"

var (
	// ErrPoolStopped is returned by Put/TryPut/Ingest once Stop has been
	// called; no further admissions are accepted.
	ErrPoolStopped = errors.New("tagpool: pool is stopped")

	// ErrInsufficientGeneric is returned by Adjust(tag, size, true) when
	// moving slots to/from the generic reserve would drive it below the
	// capacity already committed to borrowers and in-use generic tasks.
	ErrInsufficientGeneric = errors.New("tagpool: insufficient generic capacity for this adjustment")

	// ErrUnknownTag is exported but never returned by this package: an
	// undeclared tag is created with reserved=0 on first use.
	ErrUnknownTag = errors.New("tagpool: unknown tag")

	// ErrNilFunc is returned by Put/TryPut/Ingest when the supplied work
	// function is nil.
	ErrNilFunc = errors.New("tagpool: work function is nil")

	// ErrNilTask is exported but never returned by this package.
	ErrNilTask = errors.New("tagpool: task is nil")

	// ErrExecutorClosed is returned by an Executor's Run method once
	// Shutdown has completed.
	ErrExecutorClosed = errors.New("tagpool: executor is closed")

	// ErrIterationDisabled is returned by Pool.NextContext when the pool was
	// constructed with a default data callback, which commits every
	// result to the callback path instead of the result queue.
	ErrIterationDisabled = errors.New("tagpool: iteration disabled while a default data callback is set")
)
