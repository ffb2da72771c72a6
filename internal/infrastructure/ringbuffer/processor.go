package ringbuffer

import (
	"errors"
	"sync/atomic"
)

// Handler is invoked once per published slot, in sequence order.
// endOfBatch is true for the last slot currently available.
type Handler[T any] func(slot *T, seq int64, endOfBatch bool)

// Processor consumes every slot of a ring buffer on the goroutine calling Run
type Processor[T any] struct {
	ring     *RingBuffer[T]
	sequence *Sequence
	handler  Handler[T]
	running  atomic.Bool
}

// NewProcessor attaches a processor to the ring. Producers will not overwrite a
// slot until the processor has handled it, so processors must be attached
// before the first Claim.
func (rb *RingBuffer[T]) NewProcessor(handler Handler[T]) *Processor[T] {
	p := &Processor[T]{
		ring:     rb,
		sequence: NewSequence(rb.cursor.Load()),
		handler:  handler,
	}
	rb.addGatingSequence(p.sequence)
	return p
}

// Sequence returns the last sequence this processor finished
func (p *Processor[T]) Sequence() int64 {
	return p.sequence.Get()
}

// Run consumes slots until the ring is closed and drained. It returns nil on a
// clean shutdown.
func (p *Processor[T]) Run() error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("processor is already running")
	}
	defer p.running.Store(false)

	next := p.sequence.Get() + 1
	for {
		available, err := p.ring.WaitFor(next)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}

		// release each slot as soon as it is handled so producers see
		// capacity mid-batch
		for ; next <= available; next++ {
			p.handler(p.ring.Slot(next), next, next == available)
			p.sequence.Set(next)
			p.ring.signal()
		}
	}
}
