package tagpool

import (
	"context"

	"github.com/google/uuid"
)

// Func is a user-supplied unit of work. ctx carries cancellation for
// implementations that honor it; args are whatever the caller passed to
// Put/Ingest.
type Func func(ctx context.Context, args ...any) (any, error)

// Outcome is a completed task's result, as delivered to a callback or
// pushed onto the result queue for iteration.
type Outcome struct {
	TaskID uuid.UUID
	Tag    Tag
	Value  any
	Err    error
}

// Succeeded reports whether the task completed without error.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// TaskHandle is the opaque handle returned by Put/TryPut: enough to
// identify the task in logs or traces without exposing its internal
// bookkeeping.
type TaskHandle struct {
	ID  uuid.UUID
	Tag Tag
}

// task is the internal record tracked between admission and routing.
type task struct {
	id       uuid.UUID
	tag      Tag
	fn       Func
	args     []any
	onData   func(any)
	onError  func(error)
	borrowed bool
}

func newTask(tag Tag, fn Func, args []any, onData func(any), onError func(error)) *task {
	return &task{
		id:      uuid.New(),
		tag:     tag,
		fn:      fn,
		args:    args,
		onData:  onData,
		onError: onError,
	}
}

func (t *task) handle() TaskHandle {
	return TaskHandle{ID: t.id, Tag: t.tag}
}
