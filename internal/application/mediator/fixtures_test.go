package mediator_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cosminstn/disruptor-mediator/internal/application/mediator"
)

type Increment struct {
	mediator.CommandOf[mediator.Unit]
	Counter *atomic.Int64
}

type NextNumber struct {
	mediator.QueryOf[int]
	N int
}

type HandlerWorker struct {
	mediator.QueryOf[string]
}

type Unhandled struct {
	mediator.QueryOf[int]
}

type Explode struct {
	mediator.CommandOf[mediator.Unit]
}

type Fail struct {
	mediator.CommandOf[mediator.Unit]
}

type NumberPublished struct {
	mediator.EventOf
	N int
}

var errHandlerFailed = errors.New("handler failed")

func incrementBinding() mediator.Binding {
	return mediator.BindCommand[Increment, mediator.Unit]("incrementHandler",
		mediator.CommandHandlerFunc[Increment, mediator.Unit](func(_ context.Context, c Increment) (mediator.Unit, error) {
			c.Counter.Add(1)
			return mediator.Unit{}, nil
		}))
}

func nextNumberBinding() mediator.Binding {
	return mediator.BindQuery[NextNumber, int]("nextNumberHandler",
		mediator.QueryHandlerFunc[NextNumber, int](func(_ context.Context, q NextNumber) (int, error) {
			return q.N + 1, nil
		}))
}

func handlerWorkerBinding() mediator.Binding {
	return mediator.BindQuery[HandlerWorker, string]("handlerWorkerHandler",
		mediator.QueryHandlerFunc[HandlerWorker, string](func(ctx context.Context, _ HandlerWorker) (string, error) {
			w, ok := mediator.WorkerFromContext(ctx)
			if !ok {
				return "", errors.New("not running on a worker")
			}
			return w.ID, nil
		}))
}

func explodeBinding() mediator.Binding {
	return mediator.BindCommand[Explode, mediator.Unit]("explodeHandler",
		mediator.CommandHandlerFunc[Explode, mediator.Unit](func(context.Context, Explode) (mediator.Unit, error) {
			panic("boom")
		}))
}

func failBinding() mediator.Binding {
	return mediator.BindCommand[Fail, mediator.Unit]("failHandler",
		mediator.CommandHandlerFunc[Fail, mediator.Unit](func(context.Context, Fail) (mediator.Unit, error) {
			return mediator.Unit{}, errHandlerFailed
		}))
}

func defaultBindings() []mediator.Binding {
	return []mediator.Binding{
		incrementBinding(),
		nextNumberBinding(),
		handlerWorkerBinding(),
		explodeBinding(),
		failBinding(),
	}
}

// newStartedMediator creates and initializes a mediator closed at test cleanup
func newStartedMediator(t *testing.T, bindings []mediator.Binding, opts ...mediator.Option) *mediator.Mediator {
	t.Helper()

	m, err := mediator.New(mediator.NewRegistry(mediator.StaticBindings(bindings...)), opts...)
	require.NoError(t, err)
	require.NoError(t, m.Initialize(context.Background()))

	t.Cleanup(func() {
		_ = m.Close(context.Background())
	})
	return m
}
