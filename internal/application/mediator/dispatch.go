package mediator

import (
	"context"
	"reflect"
)

// DispatchBlocking sends req through the queue to its execution group and
// waits for the response, for at most the blocking timeout. A timeout yields
// a *DispatchTimeoutError; the request is still handled afterwards.
//
// Called from a handler already running on the target group's worker, the
// request is handled inline: queueing it would wait on the very worker that
// is blocked waiting.
func DispatchBlocking[R any](ctx context.Context, m *Mediator, req Request[R], opts ...DispatchOption) (R, error) {
	var zero R
	if req == nil {
		return zero, ErrNilMessage
	}
	o := m.dispatchOptions(opts)

	if w, ok := WorkerFromContext(ctx); ok && w.mediatorID == m.id && w.Group == o.group {
		w.processed.Add(1)
		response, err := m.handleRequest(ctx, w, kindOf(req), reflect.TypeOf(req), req)
		if err != nil {
			return zero, err
		}
		return responseAs[R](response)
	}

	f := newFuture[R](MessageName(reflect.TypeOf(req)))
	if err := m.enqueue(ctx, o.group, kindOf(req), req, f, nil); err != nil {
		return zero, err
	}
	return f.Wait(ctx, o.timeout)
}

// DispatchAsync queues req and returns immediately with its pending response
func DispatchAsync[R any](ctx context.Context, m *Mediator, req Request[R], opts ...DispatchOption) (*Future[R], error) {
	if req == nil {
		return nil, ErrNilMessage
	}
	o := m.dispatchOptions(opts)

	f := newFuture[R](MessageName(reflect.TypeOf(req)))
	if err := m.enqueue(ctx, o.group, kindOf(req), req, f, nil); err != nil {
		return nil, err
	}
	return f, nil
}

// DispatchAsyncWithCallback queues req like DispatchAsync and calls cb on
// the group's worker once the request is handled, before its slot is reused
// and before the returned future settles. A panicking callback is logged and
// does not affect the future.
func DispatchAsyncWithCallback[R any](
	ctx context.Context,
	m *Mediator,
	req Request[R],
	cb func(req Request[R], response R, err error),
	opts ...DispatchOption,
) (*Future[R], error) {
	if req == nil {
		return nil, ErrNilMessage
	}
	o := m.dispatchOptions(opts)

	var callback func(any, error)
	if cb != nil {
		callback = func(response any, err error) {
			var r R
			if err == nil {
				r, err = responseAs[R](response)
			}
			cb(req, r, err)
		}
	}

	f := newFuture[R](MessageName(reflect.TypeOf(req)))
	if err := m.enqueue(ctx, o.group, kindOf(req), req, f, callback); err != nil {
		return nil, err
	}
	return f, nil
}

// Publish queues ev for every handler of its type and returns once it is
// enqueued. Handler failures are logged and recorded, never returned.
func (m *Mediator) Publish(ctx context.Context, ev Event, opts ...DispatchOption) error {
	if ev == nil {
		return ErrNilMessage
	}
	o := m.dispatchOptions(opts)
	return m.enqueue(ctx, o.group, KindEvent, ev, nil, nil)
}

func (m *Mediator) dispatchOptions(opts []DispatchOption) dispatchOptions {
	o := dispatchOptions{
		group:   DefaultExecutionGroup,
		timeout: m.opts.blockingTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
