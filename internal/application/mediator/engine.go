package mediator

import (
	"context"
	"runtime"
	"sync"

	"github.com/cosminstn/disruptor-mediator/internal/infrastructure/ringbuffer"
	"github.com/cosminstn/disruptor-mediator/pkg/utils"
)

// engine runs one worker per execution group over a single shared ring.
//
// Every worker observes every slot and acts only on slots tagged with its
// group. Groups therefore share one ordering domain while each keeps a
// dedicated thread.
type engine struct {
	ring       *ringbuffer.RingBuffer[envelope]
	workers    []*Worker
	processors []*ringbuffer.Processor[envelope]
	wg         sync.WaitGroup
}

func newEngine(mediatorID string, size, groups int, process func(w *Worker, env *envelope)) (*engine, error) {
	ring, err := ringbuffer.New[envelope](size)
	if err != nil {
		return nil, err
	}

	e := &engine{ring: ring}
	for g := 1; g <= groups; g++ {
		w := &Worker{
			ID:         utils.GenerateWorkerID(g),
			Group:      g,
			mediatorID: mediatorID,
		}
		group := int32(g)
		p := ring.NewProcessor(func(env *envelope, _ int64, _ bool) {
			if env.group.Load() != group {
				return
			}
			process(w, env)
		})
		e.workers = append(e.workers, w)
		e.processors = append(e.processors, p)
	}
	return e, nil
}

func (e *engine) start() {
	for _, p := range e.processors {
		p := p
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			_ = p.Run()
		}()
	}
}

func (e *engine) publish(ctx context.Context, fill func(env *envelope, seq int64)) error {
	return e.ring.PublishWith(ctx, fill)
}

// tryPublish publishes without waiting for capacity, for producers that are
// themselves workers of this engine
func (e *engine) tryPublish(fill func(env *envelope, seq int64)) error {
	return e.ring.TryPublishWith(fill)
}

// stop closes the ring and waits for workers to drain it
func (e *engine) stop(ctx context.Context) error {
	e.ring.Close()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
