package samples

import (
	"context"

	"github.com/cosminstn/disruptor-mediator/internal/application/logging"
	"github.com/cosminstn/disruptor-mediator/internal/application/mediator"
)

// PrintThingHandler handles PrintThing
type PrintThingHandler struct {
	logger logging.Logger
}

// NewPrintThingHandler creates a new PrintThingHandler
func NewPrintThingHandler(logger logging.Logger) *PrintThingHandler {
	return &PrintThingHandler{logger: logger}
}

// Handle logs the thing
func (h *PrintThingHandler) Handle(ctx context.Context, cmd PrintThing) (mediator.Unit, error) {
	h.logger.Info("printing thing", "thing", cmd.Thing, "worker", workerID(ctx))
	return mediator.Unit{}, nil
}

// FindNextNumberHandler handles FindNextNumber
type FindNextNumberHandler struct{}

// Handle returns the next number
func (FindNextNumberHandler) Handle(_ context.Context, q FindNextNumber) (int, error) {
	return q.Number + 1, nil
}

// HandlerThreadHandler handles HandlerThread
type HandlerThreadHandler struct{}

// Handle returns the current worker ID
func (HandlerThreadHandler) Handle(ctx context.Context, _ HandlerThread) (string, error) {
	return workerID(ctx), nil
}

// NumberEventHandler logs every NumberEvent with the mediator's logger
type NumberEventHandler struct{}

// Handle logs the number
func (NumberEventHandler) Handle(ctx context.Context, ev NumberEvent) error {
	logging.FromContext(ctx).Info("handled number event", "number", ev.Number, "worker", workerID(ctx))
	return nil
}

// StringEventHandler logs every StringEvent with the mediator's logger
type StringEventHandler struct{}

// Handle logs the string
func (StringEventHandler) Handle(ctx context.Context, ev StringEvent) error {
	logging.FromContext(ctx).Info("handled string event", "value", ev.Value, "worker", workerID(ctx))
	return nil
}

// Bindings returns every sample handler binding
func Bindings(logger logging.Logger) []mediator.Binding {
	return []mediator.Binding{
		mediator.BindCommand[PrintThing, mediator.Unit]("printThingHandler", NewPrintThingHandler(logger)),
		mediator.BindQuery[FindNextNumber, int]("findNextNumberHandler", FindNextNumberHandler{}),
		mediator.BindQuery[HandlerThread, string]("handlerThreadHandler", HandlerThreadHandler{}),
		mediator.BindEvent[NumberEvent]("numberEventHandler", NumberEventHandler{}),
		mediator.BindEvent[StringEvent]("stringEventHandler", StringEventHandler{}),
	}
}

func workerID(ctx context.Context) string {
	if w, ok := mediator.WorkerFromContext(ctx); ok {
		return w.ID
	}
	return "caller"
}
