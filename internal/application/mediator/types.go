package mediator

import (
	"context"
)

// Unit is the response type of commands that return nothing meaningful
type Unit = struct{}

// Request is a message expecting a single response of type R.
// It is sealed: embed CommandOf or QueryOf to implement it.
type Request[R any] interface {
	responseOf() R
}

// Command is a request that changes state
type Command[R any] interface {
	Request[R]
	command()
}

// Query is a request that reads state without changing it
type Query[R any] interface {
	Request[R]
	query()
}

// Event is a broadcast notification handled by zero or more handlers.
// Embed EventOf to implement it.
type Event interface {
	event()
}

// CommandOf marks the embedding struct as a Command[R]
//
//	type Increment struct {
//	    mediator.CommandOf[mediator.Unit]
//	    Counter *atomic.Int64
//	}
type CommandOf[R any] struct{}

func (CommandOf[R]) responseOf() (r R) { return r }
func (CommandOf[R]) command()          {}

// QueryOf marks the embedding struct as a Query[R]
type QueryOf[R any] struct{}

func (QueryOf[R]) responseOf() (r R) { return r }
func (QueryOf[R]) query()            {}

// EventOf marks the embedding struct as an Event
type EventOf struct{}

func (EventOf) event() {}

// CommandHandler handles exactly one command type
type CommandHandler[C Command[R], R any] interface {
	Handle(ctx context.Context, command C) (R, error)
}

// QueryHandler handles exactly one query type
type QueryHandler[Q Query[R], R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

// EventHandler handles one event type; many may exist per type
type EventHandler[E Event] interface {
	Handle(ctx context.Context, event E) error
}

// CommandHandlerFunc adapts a function to CommandHandler
type CommandHandlerFunc[C Command[R], R any] func(ctx context.Context, command C) (R, error)

// Handle calls f(ctx, command)
func (f CommandHandlerFunc[C, R]) Handle(ctx context.Context, command C) (R, error) {
	return f(ctx, command)
}

// QueryHandlerFunc adapts a function to QueryHandler
type QueryHandlerFunc[Q Query[R], R any] func(ctx context.Context, query Q) (R, error)

// Handle calls f(ctx, query)
func (f QueryHandlerFunc[Q, R]) Handle(ctx context.Context, query Q) (R, error) {
	return f(ctx, query)
}

// EventHandlerFunc adapts a function to EventHandler
type EventHandlerFunc[E Event] func(ctx context.Context, event E) error

// Handle calls f(ctx, event)
func (f EventHandlerFunc[E]) Handle(ctx context.Context, event E) error {
	return f(ctx, event)
}

// HandlerFunc is the type-erased form of a command or query handler
type HandlerFunc func(ctx context.Context, request any) (any, error)

// Middleware wraps command/query handler execution with cross-cutting concerns.
// Middleware runs on the execution group's worker, around the handler.
// Examples: logging, telemetry, authorization
type Middleware func(ctx context.Context, request any, next HandlerFunc) (any, error)

// Kind classifies a message
type Kind uint8

const (
	KindNone Kind = iota
	KindCommand
	KindQuery
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindQuery:
		return "query"
	case KindEvent:
		return "event"
	default:
		return "none"
	}
}

// KindOf reports whether msg is a command, query or event
func KindOf(msg any) Kind {
	return kindOf(msg)
}

func kindOf(msg any) Kind {
	switch msg.(type) {
	case interface{ command() }:
		return KindCommand
	case interface{ query() }:
		return KindQuery
	case Event:
		return KindEvent
	default:
		return KindNone
	}
}
