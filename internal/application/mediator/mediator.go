package mediator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/cosminstn/disruptor-mediator/internal/application/logging"
	"github.com/cosminstn/disruptor-mediator/internal/infrastructure/ringbuffer"
	"github.com/cosminstn/disruptor-mediator/pkg/utils"
)

const (
	stateNew int32 = iota
	stateReady
	stateClosing
	stateClosed
)

// Mediator routes commands, queries and events to their handlers through a
// shared ring buffer consumed by one dedicated worker per execution group.
//
// Lifecycle: New → Initialize → dispatches → Close. Dispatching before
// Initialize returns ErrNotInitialized.
type Mediator struct {
	id       string
	opts     options
	registry *Registry
	engine   *engine
	logger   logging.Logger

	chain    func(ctx context.Context, b Binding, request any) (any, error)
	state    atomic.Int32
	inflight atomic.Int64
}

// New creates a mediator over registry. Workers are not started until Initialize.
func New(registry *Registry, opts ...Option) (*Mediator, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.executionGroups < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidExecutionGroups, o.executionGroups)
	}

	m := &Mediator{
		id:       utils.GenerateMediatorID(),
		opts:     o,
		registry: registry,
		logger:   o.logger,
	}

	eng, err := newEngine(m.id, o.bufferSize, o.executionGroups, m.process)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch engine: %w", err)
	}
	m.engine = eng

	return m, nil
}

// ID returns the unique ID of this mediator instance
func (m *Mediator) ID() string {
	return m.id
}

// Registry returns the handler registry
func (m *Mediator) Registry() *Registry {
	return m.registry
}

// ExecutionGroups returns the number of execution groups
func (m *Mediator) ExecutionGroups() int {
	return m.opts.executionGroups
}

// Use appends middleware. It must be called before Initialize.
func (m *Mediator) Use(mw ...Middleware) error {
	if m.state.Load() != stateNew {
		return ErrAlreadyInitialized
	}
	m.opts.middleware = append(m.opts.middleware, mw...)
	return nil
}

// Initialize builds the registry and starts one worker per execution group.
// A registry error (duplicate handler, enumeration failure) is fatal and
// leaves the mediator unusable.
func (m *Mediator) Initialize(ctx context.Context) error {
	if m.state.Load() != stateNew {
		return ErrAlreadyInitialized
	}

	if err := m.registry.Build(ctx); err != nil {
		m.logger.Error("failed to build handler registry", "mediator_id", m.id, "error", err)
		return fmt.Errorf("failed to build handler registry: %w", err)
	}

	m.chain = buildChain(m.opts.middleware)

	if !m.state.CompareAndSwap(stateNew, stateReady) {
		return ErrAlreadyInitialized
	}
	m.engine.start()

	m.logger.Info("mediator initialized",
		"mediator_id", m.id,
		"execution_groups", m.opts.executionGroups,
		"buffer_size", m.opts.bufferSize,
		"handlers", len(m.registry.Names()),
	)
	return nil
}

// Close stops accepting dispatches, lets workers drain everything already
// queued and stops them. Safe to call more than once. If ctx ends first the
// mediator stays closing, and a later Close resumes the drain.
func (m *Mediator) Close(ctx context.Context) error {
	if m.state.CompareAndSwap(stateNew, stateClosed) {
		return nil
	}
	if m.state.CompareAndSwap(stateReady, stateClosing) {
		m.logger.Info("closing mediator", "mediator_id", m.id)
	} else if m.state.Load() != stateClosing {
		return nil
	}

	// Producers that passed the state check before closing still own a claim
	for m.inflight.Load() > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed waiting for in-flight dispatches: %w", ctx.Err())
		case <-time.After(time.Millisecond):
		}
	}

	if err := m.engine.stop(ctx); err != nil {
		return fmt.Errorf("failed waiting for workers to drain: %w", err)
	}

	m.state.Store(stateClosed)
	m.logger.Info("mediator closed", "mediator_id", m.id)
	return nil
}

// GroupStats describes one execution group
type GroupStats struct {
	Group     int
	WorkerID  string
	Processed uint64
}

// Stats is a point-in-time snapshot of the dispatch engine
type Stats struct {
	MediatorID        string
	BufferSize        int
	RemainingCapacity int64
	Groups            []GroupStats
}

// Stats returns a snapshot of the dispatch engine
func (m *Mediator) Stats() Stats {
	s := Stats{
		MediatorID:        m.id,
		BufferSize:        m.engine.ring.Size(),
		RemainingCapacity: m.engine.ring.RemainingCapacity(),
	}
	for _, w := range m.engine.workers {
		s.Groups = append(s.Groups, GroupStats{
			Group:     w.Group,
			WorkerID:  w.ID,
			Processed: w.Processed(),
		})
	}
	return s
}

// enqueue publishes a message on the ring for group
func (m *Mediator) enqueue(ctx context.Context, group int, kind Kind, msg any, c completion, cb func(any, error)) error {
	m.inflight.Add(1)
	defer m.inflight.Add(-1)

	if err := m.checkReady(); err != nil {
		return err
	}
	if err := m.checkGroup(group); err != nil {
		return err
	}

	// Handlers keep the caller's values but not its cancellation: a
	// published message is always processed.
	handlerCtx := context.WithoutCancel(ctx)

	fill := func(env *envelope, seq int64) {
		env.fill(handlerCtx, seq, group, kind, msg, c, cb)
	}

	var err error
	if w, ok := WorkerFromContext(ctx); ok && w.mediatorID == m.id {
		err = m.engine.tryPublish(fill)
		if errors.Is(err, ringbuffer.ErrFull) {
			err = ErrRingFull
		}
	} else {
		err = m.engine.publish(ctx, fill)
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", MessageName(reflect.TypeOf(msg)), err)
	}

	m.opts.metrics.RecordDispatch(kind, MessageName(reflect.TypeOf(msg)), group)
	return nil
}

func (m *Mediator) checkReady() error {
	switch m.state.Load() {
	case stateReady:
		return nil
	case stateNew:
		return ErrNotInitialized
	default:
		return ErrClosed
	}
}

func (m *Mediator) checkGroup(group int) error {
	if group < 1 || group > m.opts.executionGroups {
		return &InvalidExecutionGroupError{Group: group, Groups: m.opts.executionGroups}
	}
	return nil
}

// process runs on the worker of env's execution group. It never panics and
// never returns an error: every outcome is delivered through the completion.
func (m *Mediator) process(w *Worker, env *envelope) {
	w.processed.Add(1)

	ctx := env.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithLogger(withWorker(ctx, w), m.logger)

	var (
		response any
		err      error
	)

	switch {
	case env.payload == nil:
		if env.completion != nil || env.callback != nil {
			err = ErrEmptyPayload
			m.logger.Error("empty envelope reached worker", "group", w.Group, "sequence", env.sequence)
		}
	case env.kind == KindEvent:
		m.handleEvent(ctx, w, env.messageType, env.payload)
	default:
		response, err = m.handleRequest(ctx, w, env.kind, env.messageType, env.payload)
	}

	callback, c := env.callback, env.completion
	if callback != nil {
		m.runCallback(w, env.messageType, callback, response, err)
	}
	env.reset()
	if c != nil {
		c.settle(response, err)
	}
}

func (m *Mediator) handleRequest(ctx context.Context, w *Worker, kind Kind, t reflect.Type, request any) (any, error) {
	name := MessageName(t)

	b, err := m.registry.LookupRequest(ctx, t)
	if err != nil {
		m.logger.Warn("no handler for request", "message", name, "group", w.Group, "error", err)
		m.opts.metrics.RecordProcessed(kind, name, w.Group, 0, err)
		return nil, err
	}

	start := time.Now()
	response, err := m.chain(ctx, b, request)
	elapsed := time.Since(start)

	m.opts.metrics.RecordProcessed(kind, name, w.Group, elapsed, err)
	m.warnIfSlow(b.Name, name, w.Group, elapsed)

	if err != nil {
		m.logger.Debug("request failed", "message", name, "handler", b.Name, "group", w.Group, "error", err)
		m.recordFailure(ctx, w, b, err)
	}
	return response, err
}

func (m *Mediator) handleEvent(ctx context.Context, w *Worker, t reflect.Type, event any) {
	name := MessageName(t)

	handlers, err := m.registry.LookupEventHandlers(ctx, t)
	if err != nil {
		m.logger.Error("failed to look up event handlers", "event", name, "error", err)
		return
	}
	if len(handlers) == 0 {
		m.logger.Debug("event has no handlers", "event", name)
	}

	start := time.Now()
	failed := 0
	for _, b := range handlers {
		handlerStart := time.Now()
		_, err := invoke(ctx, b, event)
		m.warnIfSlow(b.Name, name, w.Group, time.Since(handlerStart))
		if err == nil {
			continue
		}

		failed++
		m.logger.Error("event handler failed",
			"event", name,
			"handler", b.Name,
			"group", w.Group,
			"error", err,
		)
		m.opts.metrics.RecordEventHandlerFailure(name, b.Name)
		m.recordFailure(ctx, w, b, err)
	}

	var outcome error
	if failed > 0 {
		outcome = fmt.Errorf("%d of %d event handlers failed", failed, len(handlers))
	}
	m.opts.metrics.RecordProcessed(KindEvent, name, w.Group, time.Since(start), outcome)
}

func (m *Mediator) runCallback(w *Worker, t reflect.Type, cb func(any, error), response any, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("dispatch callback panicked", "message", MessageName(t), "group", w.Group, "panic", r)
		}
	}()
	cb(response, err)
}

func (m *Mediator) warnIfSlow(handler, message string, group int, elapsed time.Duration) {
	if m.opts.slowHandlerThreshold > 0 && elapsed > m.opts.slowHandlerThreshold {
		m.logger.Warn("slow handler",
			"handler", handler,
			"message", message,
			"group", group,
			"elapsed", elapsed,
		)
	}
}

func (m *Mediator) recordFailure(ctx context.Context, w *Worker, b Binding, err error) {
	if m.opts.failures == nil {
		return
	}

	failure := Failure{
		ID:          utils.GenerateFailureID(),
		MediatorID:  m.id,
		Kind:        b.Kind,
		MessageType: MessageName(b.MessageType),
		Handler:     b.Name,
		Group:       w.Group,
		Error:       err.Error(),
		OccurredAt:  time.Now(),
	}
	var execErr *HandlerExecutionError
	if errors.As(err, &execErr) {
		failure.Panicked = execErr.Panicked
	}

	if recErr := m.opts.failures.RecordFailure(ctx, failure); recErr != nil {
		m.logger.Error("failed to record handler failure", "handler", b.Name, "error", recErr)
	}
}

// invoke calls the handler and converts its error or panic into a
// *HandlerExecutionError
func invoke(ctx context.Context, b Binding, msg any) (response any, err error) {
	defer func() {
		if r := recover(); r != nil {
			response = nil
			err = &HandlerExecutionError{
				Handler:     b.Name,
				MessageType: b.MessageType,
				Panicked:    true,
				Err:         fmt.Errorf("%v", r),
			}
		}
	}()

	response, err = b.invoke(ctx, msg)
	if err != nil {
		return nil, &HandlerExecutionError{Handler: b.Name, MessageType: b.MessageType, Err: err}
	}
	return response, nil
}

// buildChain wraps invoke in middleware, first middleware outermost
func buildChain(middleware []Middleware) func(ctx context.Context, b Binding, request any) (any, error) {
	return func(ctx context.Context, b Binding, request any) (response any, err error) {
		// middleware may panic too; the worker loop must survive it
		defer func() {
			if r := recover(); r != nil {
				response = nil
				err = &HandlerExecutionError{
					Handler:     b.Name,
					MessageType: b.MessageType,
					Panicked:    true,
					Err:         fmt.Errorf("%v", r),
				}
			}
		}()

		next := func(ctx context.Context, request any) (any, error) {
			return invoke(ctx, b, request)
		}
		for i := len(middleware) - 1; i >= 0; i-- {
			mw, inner := middleware[i], next
			next = func(ctx context.Context, request any) (any, error) {
				return mw(ctx, request, inner)
			}
		}
		return next(ctx, request)
	}
}
