package mediator

import (
	"time"

	"github.com/cosminstn/disruptor-mediator/internal/application/logging"
)

const (
	// DefaultBufferSize is the number of pre-allocated envelope slots
	DefaultBufferSize = 1024
	// DefaultExecutionGroups gives total ordering on one dedicated worker
	DefaultExecutionGroups = 1
	// DefaultBlockingTimeout bounds DispatchBlocking
	DefaultBlockingTimeout = time.Minute
	// DefaultExecutionGroup receives dispatches that do not name one
	DefaultExecutionGroup = 1
)

type options struct {
	executionGroups      int
	bufferSize           int
	blockingTimeout      time.Duration
	slowHandlerThreshold time.Duration
	logger               logging.Logger
	metrics              MetricsRecorder
	failures             FailureSink
	middleware           []Middleware
}

// Option configures a Mediator
type Option func(*options)

func defaultOptions() options {
	return options{
		executionGroups: DefaultExecutionGroups,
		bufferSize:      DefaultBufferSize,
		blockingTimeout: DefaultBlockingTimeout,
		logger:          logging.NewNopLogger(),
		metrics:         nopMetrics{},
	}
}

// WithExecutionGroups sets the number of execution groups, each with its own worker
func WithExecutionGroups(n int) Option {
	return func(o *options) {
		o.executionGroups = n
	}
}

// WithBufferSize sets the ring capacity. Must be a power of two.
func WithBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = n
	}
}

// WithBlockingTimeout bounds how long DispatchBlocking waits. Zero waits forever.
func WithBlockingTimeout(d time.Duration) Option {
	return func(o *options) {
		o.blockingTimeout = d
	}
}

// WithSlowHandlerThreshold logs a warning for handlers running longer than d.
// Zero disables the warning.
func WithSlowHandlerThreshold(d time.Duration) Option {
	return func(o *options) {
		o.slowHandlerThreshold = d
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(recorder MetricsRecorder) Option {
	return func(o *options) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithFailureSink records every handler failure in sink
func WithFailureSink(sink FailureSink) Option {
	return func(o *options) {
		o.failures = sink
	}
}

// WithMiddleware appends middleware around command and query handlers.
// The first middleware is the outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

type dispatchOptions struct {
	group   int
	timeout time.Duration
}

// DispatchOption configures a single dispatch
type DispatchOption func(*dispatchOptions)

// WithExecutionGroup routes the dispatch to group g (1..N)
func WithExecutionGroup(g int) DispatchOption {
	return func(o *dispatchOptions) {
		o.group = g
	}
}

// WithTimeout overrides the blocking timeout for one DispatchBlocking call
func WithTimeout(d time.Duration) DispatchOption {
	return func(o *dispatchOptions) {
		o.timeout = d
	}
}
