package samples

import "github.com/cosminstn/disruptor-mediator/internal/application/mediator"

// PrintThing logs Thing on the worker that handles it
type PrintThing struct {
	mediator.CommandOf[mediator.Unit]
	Thing string
}

// FindNextNumber answers Number + 1
type FindNextNumber struct {
	mediator.QueryOf[int]
	Number int
}

// HandlerThread answers the ID of the worker that handled it
type HandlerThread struct {
	mediator.QueryOf[string]
}

// NumberEvent announces a number
type NumberEvent struct {
	mediator.EventOf
	Number int64
}

// StringEvent announces a string
type StringEvent struct {
	mediator.EventOf
	Value string
}
