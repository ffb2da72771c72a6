package mediator

import (
	"context"
	"reflect"
	"sync/atomic"
)

// completion is settled exactly once by the worker that processed the envelope
type completion interface {
	settle(response any, err error)
}

// envelope is a reusable ring slot carrying one message through the pipeline.
//
// Lifecycle: empty → claimed (producer fills it) → published (every worker
// sees it) → consumed (matching worker ran the handler) → empty.
// Only group is read by workers of other execution groups, so it is the only
// atomic field.
type envelope struct {
	group atomic.Int32

	kind        Kind
	payload     any
	messageType reflect.Type
	ctx         context.Context
	completion  completion
	callback    func(response any, err error)

	// sequence of the last occupant, kept across resets as a generation marker
	sequence int64
}

func (e *envelope) fill(ctx context.Context, seq int64, group int, kind Kind, payload any, c completion, cb func(any, error)) {
	e.sequence = seq
	e.kind = kind
	e.payload = payload
	e.messageType = reflect.TypeOf(payload)
	e.ctx = ctx
	e.completion = c
	e.callback = cb
	e.group.Store(int32(group))
}

// reset drops every reference so the slot does not keep the previous
// occupant's object graph alive.
func (e *envelope) reset() {
	e.kind = KindNone
	e.payload = nil
	e.messageType = nil
	e.ctx = nil
	e.completion = nil
	e.callback = nil
	e.group.Store(0)
}

func (e *envelope) isEmpty() bool {
	return e.payload == nil && e.completion == nil && e.callback == nil && e.ctx == nil
}
