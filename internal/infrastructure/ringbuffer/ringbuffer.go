package ringbuffer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// InitialSequence is the value of every sequence before anything is published
const InitialSequence int64 = -1

// ErrClosed is returned to producers claiming on a closed ring buffer and to
// processors once everything published before Close has been consumed.
var ErrClosed = errors.New("ring buffer closed")

// ErrFull is returned by TryClaim when every slot is still held by a processor
var ErrFull = errors.New("ring buffer full")

// Sequence is a monotonically increasing counter owned by a single processor.
// Padding keeps sequences owned by different processors on different cache lines.
type Sequence struct {
	_     [56]byte
	value atomic.Int64
	_     [56]byte
}

// NewSequence creates a sequence starting at initial
func NewSequence(initial int64) *Sequence {
	s := &Sequence{}
	s.value.Store(initial)
	return s
}

// Get returns the current value
func (s *Sequence) Get() int64 {
	return s.value.Load()
}

// Set publishes a new value
func (s *Sequence) Set(v int64) {
	s.value.Store(v)
}

// RingBuffer is a bounded multi-producer queue of pre-allocated slots.
//
// Producers claim the next sequence, fill the slot in place and publish it.
// Every Processor attached to the ring observes every published slot in
// sequence order. A producer blocks while the slot it claims is still held by
// the slowest processor.
type RingBuffer[T any] struct {
	size      int64
	mask      int64
	slots     []T
	available []atomic.Int64

	// cursor is the highest claimed sequence
	cursor atomic.Int64
	gating atomic.Pointer[[]*Sequence]

	closed  atomic.Bool
	waiters atomic.Int32
	mu      sync.Mutex
	cond    *sync.Cond
}

// New allocates a ring buffer with size slots. Size must be a power of two.
func New[T any](size int) (*RingBuffer[T], error) {
	if size < 1 || size&(size-1) != 0 {
		return nil, fmt.Errorf("ring buffer size must be a positive power of two, got %d", size)
	}

	rb := &RingBuffer[T]{
		size:      int64(size),
		mask:      int64(size - 1),
		slots:     make([]T, size),
		available: make([]atomic.Int64, size),
	}
	rb.cond = sync.NewCond(&rb.mu)
	rb.cursor.Store(InitialSequence)
	for i := range rb.available {
		rb.available[i].Store(InitialSequence)
	}
	empty := make([]*Sequence, 0)
	rb.gating.Store(&empty)

	return rb, nil
}

// Size returns the number of slots
func (rb *RingBuffer[T]) Size() int {
	return int(rb.size)
}

// Cursor returns the highest claimed sequence
func (rb *RingBuffer[T]) Cursor() int64 {
	return rb.cursor.Load()
}

// Slot returns the slot backing seq. The caller must own the sequence: a
// producer between Claim and Publish, or a processor handling it.
func (rb *RingBuffer[T]) Slot(seq int64) *T {
	return &rb.slots[seq&rb.mask]
}

// SlotAt returns the slot at a physical index, for inspection only
func (rb *RingBuffer[T]) SlotAt(index int) *T {
	return &rb.slots[int64(index)&rb.mask]
}

// RemainingCapacity returns how many sequences can be claimed without blocking
func (rb *RingBuffer[T]) RemainingCapacity() int64 {
	cursor := rb.cursor.Load()
	used := cursor - rb.minimumGatingSequence(cursor)
	return rb.size - used
}

// Claim reserves the next sequence, blocking while the ring is full.
// Every successful Claim must be followed by Publish of the same sequence.
func (rb *RingBuffer[T]) Claim(ctx context.Context) (int64, error) {
	for {
		if rb.closed.Load() {
			return InitialSequence, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return InitialSequence, err
		}

		current := rb.cursor.Load()
		next := current + 1
		if next-rb.size > rb.minimumGatingSequence(current) {
			if err := rb.waitForCapacity(ctx, next); err != nil {
				return InitialSequence, err
			}
			continue
		}

		if rb.cursor.CompareAndSwap(current, next) {
			return next, nil
		}
	}
}

// TryClaim claims the next sequence without waiting for capacity. It returns
// ErrFull when a processor has not yet released the slot.
func (rb *RingBuffer[T]) TryClaim() (int64, error) {
	for {
		if rb.closed.Load() {
			return InitialSequence, ErrClosed
		}

		current := rb.cursor.Load()
		next := current + 1
		if next-rb.size > rb.minimumGatingSequence(current) {
			return InitialSequence, ErrFull
		}

		if rb.cursor.CompareAndSwap(current, next) {
			return next, nil
		}
	}
}

// Publish makes a claimed sequence visible to processors
func (rb *RingBuffer[T]) Publish(seq int64) {
	rb.available[seq&rb.mask].Store(seq)
	rb.signal()
}

// PublishWith claims a sequence, lets translate fill the slot and publishes it.
// The slot is published even if translate panics so processors never stall.
func (rb *RingBuffer[T]) PublishWith(ctx context.Context, translate func(slot *T, seq int64)) error {
	seq, err := rb.Claim(ctx)
	if err != nil {
		return err
	}
	defer rb.Publish(seq)
	translate(rb.Slot(seq), seq)
	return nil
}

// TryPublishWith is PublishWith over TryClaim
func (rb *RingBuffer[T]) TryPublishWith(translate func(slot *T, seq int64)) error {
	seq, err := rb.TryClaim()
	if err != nil {
		return err
	}
	defer rb.Publish(seq)
	translate(rb.Slot(seq), seq)
	return nil
}

// IsAvailable reports whether seq has been published
func (rb *RingBuffer[T]) IsAvailable(seq int64) bool {
	return rb.available[seq&rb.mask].Load() == seq
}

// WaitFor blocks until seq is published and returns the highest contiguous
// published sequence at or after it. Once the ring is closed and seq was never
// claimed, it returns ErrClosed.
func (rb *RingBuffer[T]) WaitFor(seq int64) (int64, error) {
	if !rb.IsAvailable(seq) {
		rb.waiters.Add(1)
		rb.mu.Lock()
		for !rb.IsAvailable(seq) {
			if rb.closed.Load() && seq > rb.cursor.Load() {
				rb.mu.Unlock()
				rb.waiters.Add(-1)
				return seq - 1, ErrClosed
			}
			rb.cond.Wait()
		}
		rb.mu.Unlock()
		rb.waiters.Add(-1)
	}
	return rb.highestPublished(seq, rb.cursor.Load()), nil
}

// Close stops producers. Processors drain what was published and then stop.
// Producers must have stopped claiming before Close is called.
func (rb *RingBuffer[T]) Close() {
	rb.closed.Store(true)
	rb.wakeAll()
}

// IsClosed reports whether Close was called
func (rb *RingBuffer[T]) IsClosed() bool {
	return rb.closed.Load()
}

func (rb *RingBuffer[T]) addGatingSequence(s *Sequence) {
	for {
		current := rb.gating.Load()
		next := make([]*Sequence, len(*current), len(*current)+1)
		copy(next, *current)
		next = append(next, s)
		if rb.gating.CompareAndSwap(current, &next) {
			return
		}
	}
}

func (rb *RingBuffer[T]) minimumGatingSequence(fallback int64) int64 {
	gating := *rb.gating.Load()
	if len(gating) == 0 {
		return fallback
	}
	minimum := gating[0].Get()
	for _, s := range gating[1:] {
		if v := s.Get(); v < minimum {
			minimum = v
		}
	}
	return minimum
}

func (rb *RingBuffer[T]) highestPublished(lo, hi int64) int64 {
	for seq := lo; seq <= hi; seq++ {
		if !rb.IsAvailable(seq) {
			return seq - 1
		}
	}
	return hi
}

func (rb *RingBuffer[T]) waitForCapacity(ctx context.Context, next int64) error {
	rb.waiters.Add(1)
	defer rb.waiters.Add(-1)

	stop := context.AfterFunc(ctx, rb.wakeAll)
	defer stop()

	rb.mu.Lock()
	defer rb.mu.Unlock()
	for next-rb.size > rb.minimumGatingSequence(rb.cursor.Load()) {
		if rb.closed.Load() {
			return ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rb.cond.Wait()
	}
	return nil
}

// signal wakes blocked producers and processors, skipping the lock when
// nobody is waiting.
func (rb *RingBuffer[T]) signal() {
	if rb.waiters.Load() > 0 {
		rb.wakeAll()
	}
}

func (rb *RingBuffer[T]) wakeAll() {
	rb.mu.Lock()
	rb.cond.Broadcast()
	rb.mu.Unlock()
}
