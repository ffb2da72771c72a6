package mediator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Future is the pending response of an asynchronous dispatch. The worker
// settles it exactly once; it cannot be cancelled.
type Future[R any] struct {
	messageType string

	once  sync.Once
	done  chan struct{}
	value R
	err   error
}

func newFuture[R any](messageType string) *Future[R] {
	return &Future[R]{
		messageType: messageType,
		done:        make(chan struct{}),
	}
}

func (f *Future[R]) settle(response any, err error) {
	f.once.Do(func() {
		if err == nil {
			f.value, err = responseAs[R](response)
		}
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future is settled
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future is settled
func (f *Future[R]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Get waits for the response until ctx is done
func (f *Future[R]) Get(ctx context.Context) (R, error) {
	return f.Wait(ctx, 0)
}

// Wait waits for the response for at most timeout (no limit when timeout <= 0).
// Running out of time yields a *DispatchTimeoutError; the message is still handled.
func (f *Future[R]) Wait(ctx context.Context, timeout time.Duration) (R, error) {
	var zero R

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-expired:
		return zero, &DispatchTimeoutError{MessageType: f.messageType, Timeout: timeout}
	}
}

func responseAs[R any](response any) (R, error) {
	var zero R
	if response == nil {
		return zero, nil
	}
	r, ok := response.(R)
	if !ok {
		return zero, fmt.Errorf("handler returned %T, expected %T", response, zero)
	}
	return r, nil
}
