package mediator

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/cosminstn/disruptor-mediator/internal/application/logging"
)

// Registry maps message types to their handlers.
//
// Commands and queries have exactly one handler per type; events have any
// number, kept in registration order. The registry is built once from its
// BindingSource, lazily on first lookup or eagerly through Build, and is
// read-mostly afterwards. Rescan is the only way to pick up bindings the
// source starts returning later.
type Registry struct {
	source       BindingSource
	logger       logging.Logger
	rescanOnMiss bool

	mu       sync.RWMutex
	built    bool
	byName   map[string]Binding
	requests map[reflect.Type]Binding
	events   map[reflect.Type][]Binding
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used while registering handlers
func WithRegistryLogger(logger logging.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRescanOnMiss makes a lookup miss trigger one Rescan before giving up
func WithRescanOnMiss() RegistryOption {
	return func(r *Registry) {
		r.rescanOnMiss = true
	}
}

// NewRegistry creates a registry fed by source. A nil source yields an
// empty registry that only grows through Register.
func NewRegistry(source BindingSource, opts ...RegistryOption) *Registry {
	if source == nil {
		source = StaticBindings()
	}
	r := &Registry{
		source:   source,
		logger:   logging.NewNopLogger(),
		byName:   make(map[string]Binding),
		requests: make(map[reflect.Type]Binding),
		events:   make(map[reflect.Type][]Binding),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Build registers every binding from the source exactly once. Concurrent
// callers wait for the first build; later calls are no-ops. A duplicate
// binding or an enumeration error leaves the registry unbuilt.
func (r *Registry) Build(ctx context.Context) error {
	r.mu.RLock()
	built := r.built
	r.mu.RUnlock()
	if built {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.built {
		return nil
	}
	if err := r.scanLocked(ctx, false); err != nil {
		return err
	}
	r.built = true
	return nil
}

// Rescan enumerates the source again and adds bindings not registered yet.
// Bindings already known under the same name and type are skipped.
func (r *Registry) Rescan(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.scanLocked(ctx, true); err != nil {
		return err
	}
	r.built = true
	return nil
}

// Register adds a single binding
func (r *Registry) Register(b Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerInto(r.byName, r.requests, r.events, b, false)
}

// LookupRequest returns the handler bound to a command or query type
func (r *Registry) LookupRequest(ctx context.Context, t reflect.Type) (Binding, error) {
	if err := r.Build(ctx); err != nil {
		return Binding{}, err
	}

	if b, ok := r.request(t); ok {
		return b, nil
	}

	if r.rescanOnMiss {
		if err := r.Rescan(ctx); err != nil {
			return Binding{}, err
		}
		if b, ok := r.request(t); ok {
			return b, nil
		}
	}

	return Binding{}, &NoHandlerFoundError{MessageType: t}
}

// LookupEventHandlers returns the handlers bound to an event type in
// registration order. The slice must not be modified.
func (r *Registry) LookupEventHandlers(ctx context.Context, t reflect.Type) ([]Binding, error) {
	if err := r.Build(ctx); err != nil {
		return nil, err
	}

	handlers := r.eventHandlers(t)
	if len(handlers) == 0 && r.rescanOnMiss {
		if err := r.Rescan(ctx); err != nil {
			return nil, err
		}
		handlers = r.eventHandlers(t)
	}
	return handlers, nil
}

// Names returns every registered binding name, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.byName))
}

func (r *Registry) request(t reflect.Type) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.requests[t]
	return b, ok
}

func (r *Registry) eventHandlers(t reflect.Type) []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.events[t]
}

// scanLocked builds into copies and swaps them in only when the whole
// source registered cleanly.
func (r *Registry) scanLocked(ctx context.Context, rescan bool) error {
	bindings, err := r.source(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate handlers: %w", err)
	}

	byName := maps.Clone(r.byName)
	requests := maps.Clone(r.requests)
	events := make(map[reflect.Type][]Binding, len(r.events))
	for t, handlers := range r.events {
		events[t] = slices.Clone(handlers)
	}

	for _, b := range bindings {
		if err := r.registerInto(byName, requests, events, b, rescan); err != nil {
			return err
		}
	}

	r.byName, r.requests, r.events = byName, requests, events
	return nil
}

func (r *Registry) registerInto(
	byName map[string]Binding,
	requests map[reflect.Type]Binding,
	events map[reflect.Type][]Binding,
	b Binding,
	rescan bool,
) error {
	if !b.valid() {
		return fmt.Errorf("invalid binding %q: bindings must be created with BindCommand, BindQuery or BindEvent", b.Name)
	}

	r.logger.Debug("registering handler", "name", b.Name, "kind", b.Kind.String())

	if existing, ok := byName[b.Name]; ok {
		if rescan && existing.MessageType == b.MessageType && existing.Kind == b.Kind {
			return nil
		}
		return &DuplicateHandlerNameError{Name: b.Name}
	}

	switch b.Kind {
	case KindCommand, KindQuery:
		if existing, ok := requests[b.MessageType]; ok {
			return &DuplicateHandlerError{
				MessageType: b.MessageType,
				Existing:    existing.Name,
				Duplicate:   b.Name,
			}
		}
		requests[b.MessageType] = b
	case KindEvent:
		events[b.MessageType] = append(events[b.MessageType], b)
	}
	byName[b.Name] = b

	r.logger.Info("registered handler",
		"name", b.Name,
		"kind", b.Kind.String(),
		"message", MessageName(b.MessageType),
	)
	return nil
}
