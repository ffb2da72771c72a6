package mediator

import (
	"context"
	"reflect"
)

type invoker func(ctx context.Context, msg any) (any, error)

// Binding ties a named handler to the message type it handles.
// Bindings are created with BindCommand, BindQuery and BindEvent; the handled
// type comes from the type parameters, never from inspecting the handler.
type Binding struct {
	Name        string
	Kind        Kind
	MessageType reflect.Type

	invoke invoker
}

// BindCommand binds h to command type C
func BindCommand[C Command[R], R any](name string, h CommandHandler[C, R]) Binding {
	return Binding{
		Name:        name,
		Kind:        KindCommand,
		MessageType: reflect.TypeFor[C](),
		invoke: func(ctx context.Context, msg any) (any, error) {
			return h.Handle(ctx, msg.(C))
		},
	}
}

// BindQuery binds h to query type Q
func BindQuery[Q Query[R], R any](name string, h QueryHandler[Q, R]) Binding {
	return Binding{
		Name:        name,
		Kind:        KindQuery,
		MessageType: reflect.TypeFor[Q](),
		invoke: func(ctx context.Context, msg any) (any, error) {
			return h.Handle(ctx, msg.(Q))
		},
	}
}

// BindEvent binds h to event type E
func BindEvent[E Event](name string, h EventHandler[E]) Binding {
	return Binding{
		Name:        name,
		Kind:        KindEvent,
		MessageType: reflect.TypeFor[E](),
		invoke: func(ctx context.Context, msg any) (any, error) {
			return nil, h.Handle(ctx, msg.(E))
		},
	}
}

func (b Binding) valid() bool {
	return b.Name != "" && b.MessageType != nil && b.invoke != nil && b.Kind != KindNone
}

// BindingSource enumerates every handler binding of the application. It is
// consumed once when the registry is built, and again on each Rescan.
type BindingSource func(ctx context.Context) ([]Binding, error)

// StaticBindings returns a source for a fixed list built by startup code
func StaticBindings(bindings ...Binding) BindingSource {
	return func(context.Context) ([]Binding, error) {
		return bindings, nil
	}
}
