package mediator

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

var (
	// ErrNoHandlerFound matches every *NoHandlerFoundError
	ErrNoHandlerFound = errors.New("no handler found")

	// ErrDispatchTimeout matches every *DispatchTimeoutError
	ErrDispatchTimeout = errors.New("dispatch timed out")

	// ErrEmptyPayload means a slot reached a worker without a message.
	// It signals a pipeline bug, not a caller error.
	ErrEmptyPayload = errors.New("envelope carried an empty payload")

	// ErrNilMessage is returned when a nil request or event is dispatched
	ErrNilMessage = errors.New("message cannot be nil")

	// ErrNotInitialized is returned by dispatches issued before Initialize
	ErrNotInitialized = errors.New("mediator is not initialized")

	// ErrClosed is returned by dispatches issued after Close
	ErrClosed = errors.New("mediator is closed")

	// ErrRingFull is returned when a handler dispatches on its own mediator
	// while every slot is taken. Waiting there could never end, since the
	// slots are only freed by the workers.
	ErrRingFull = errors.New("ring buffer is full")

	// ErrAlreadyInitialized is returned when configuring a running mediator
	ErrAlreadyInitialized = errors.New("mediator is already initialized")

	// ErrInvalidExecutionGroups is returned for an execution group count below one
	ErrInvalidExecutionGroups = errors.New("execution group count must be at least 1")
)

// DuplicateHandlerError means a second handler was bound to a command or
// query type. It is raised while building the registry.
type DuplicateHandlerError struct {
	MessageType reflect.Type
	Existing    string
	Duplicate   string
}

func (e *DuplicateHandlerError) Error() string {
	return fmt.Sprintf("%s already has a registered handler %q, cannot register %q: each command or query must have a single handler",
		MessageName(e.MessageType), e.Existing, e.Duplicate)
}

// DuplicateHandlerNameError means two different bindings share a name
type DuplicateHandlerNameError struct {
	Name string
}

func (e *DuplicateHandlerNameError) Error() string {
	return fmt.Sprintf("there is already a handler registered with the name %q", e.Name)
}

// NoHandlerFoundError means nothing handles a dispatched command or query
type NoHandlerFoundError struct {
	MessageType reflect.Type
}

func (e *NoHandlerFoundError) Error() string {
	return fmt.Sprintf("no handler registered for %s", MessageName(e.MessageType))
}

// Is makes errors.Is(err, ErrNoHandlerFound) match
func (e *NoHandlerFoundError) Is(target error) bool {
	return target == ErrNoHandlerFound
}

// HandlerExecutionError wraps whatever a handler returned or panicked with
type HandlerExecutionError struct {
	Handler     string
	MessageType reflect.Type
	Panicked    bool
	Err         error
}

func (e *HandlerExecutionError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("handler %q panicked handling %s: %v", e.Handler, MessageName(e.MessageType), e.Err)
	}
	return fmt.Sprintf("handler %q failed handling %s: %v", e.Handler, MessageName(e.MessageType), e.Err)
}

func (e *HandlerExecutionError) Unwrap() error {
	return e.Err
}

// DispatchTimeoutError means a blocking dispatch gave up waiting.
// The message stays queued and is still handled.
type DispatchTimeoutError struct {
	MessageType string
	Timeout     time.Duration
}

func (e *DispatchTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.MessageType)
}

// Is makes errors.Is(err, ErrDispatchTimeout) match
func (e *DispatchTimeoutError) Is(target error) bool {
	return target == ErrDispatchTimeout
}

// InvalidExecutionGroupError means a dispatch named a group outside 1..N
type InvalidExecutionGroupError struct {
	Group  int
	Groups int
}

func (e *InvalidExecutionGroupError) Error() string {
	return fmt.Sprintf("execution group %d is out of range 1..%d", e.Group, e.Groups)
}
