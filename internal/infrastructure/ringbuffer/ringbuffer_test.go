package ringbuffer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosminstn/disruptor-mediator/internal/infrastructure/ringbuffer"
)

type slot struct {
	value int
}

func TestNew_RejectsSizeThatIsNotPowerOfTwo(t *testing.T) {
	for _, size := range []int{0, -1, 3, 1000} {
		_, err := ringbuffer.New[slot](size)
		assert.Error(t, err, "size %d", size)
	}

	rb, err := ringbuffer.New[slot](8)
	require.NoError(t, err)
	assert.Equal(t, 8, rb.Size())
	assert.Equal(t, int64(8), rb.RemainingCapacity())
}

func TestPublishWith_DeliversInSequenceOrderToEveryProcessor(t *testing.T) {
	// Arrange
	rb, err := ringbuffer.New[slot](4)
	require.NoError(t, err)

	const consumers = 3
	const messages = 50

	var mu sync.Mutex
	seen := make([][]int, consumers)
	var wg sync.WaitGroup
	for i := 0; i < consumers; i++ {
		i := i
		p := rb.NewProcessor(func(s *slot, _ int64, _ bool) {
			mu.Lock()
			seen[i] = append(seen[i], s.value)
			mu.Unlock()
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Run())
		}()
	}

	// Act
	for n := 0; n < messages; n++ {
		n := n
		require.NoError(t, rb.PublishWith(context.Background(), func(s *slot, _ int64) {
			s.value = n
		}))
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, values := range seen {
			if len(values) != messages {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)
	rb.Close()
	wg.Wait()

	// Assert
	for i := 0; i < consumers; i++ {
		for n := 0; n < messages; n++ {
			assert.Equal(t, n, seen[i][n])
		}
	}
}

func TestClaim_BlocksWhileRingIsFull(t *testing.T) {
	// Arrange
	rb, err := ringbuffer.New[slot](2)
	require.NoError(t, err)

	release := make(chan struct{})
	p := rb.NewProcessor(func(_ *slot, _ int64, _ bool) {
		<-release
	})
	go func() { _ = p.Run() }()
	defer rb.Close()

	for i := 0; i < 2; i++ {
		require.NoError(t, rb.PublishWith(context.Background(), func(*slot, int64) {}))
	}

	// Act
	claimed := make(chan int64, 1)
	go func() {
		seq, err := rb.Claim(context.Background())
		if err == nil {
			rb.Publish(seq)
		}
		claimed <- seq
	}()

	// Assert
	select {
	case <-claimed:
		t.Fatal("claim should block while every slot is held by the processor")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case seq := <-claimed:
		assert.Equal(t, int64(2), seq)
	case <-time.After(time.Second):
		t.Fatal("claim did not resume after the processor advanced")
	}
}

func TestClaim_HonoursContextWhileBlocked(t *testing.T) {
	rb, err := ringbuffer.New[slot](1)
	require.NoError(t, err)

	block := make(chan struct{})
	defer close(block)
	p := rb.NewProcessor(func(_ *slot, _ int64, _ bool) { <-block })
	go func() { _ = p.Run() }()

	require.NoError(t, rb.PublishWith(context.Background(), func(*slot, int64) {}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = rb.Claim(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClose_DrainsPublishedSlotsThenStopsProcessors(t *testing.T) {
	// Arrange
	rb, err := ringbuffer.New[slot](8)
	require.NoError(t, err)

	var mu sync.Mutex
	total := 0
	p := rb.NewProcessor(func(s *slot, _ int64, _ bool) {
		mu.Lock()
		total += s.value
		mu.Unlock()
	})

	for i := 1; i <= 4; i++ {
		i := i
		require.NoError(t, rb.PublishWith(context.Background(), func(s *slot, _ int64) { s.value = i }))
	}

	// Act
	rb.Close()
	err = p.Run()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 10, total)
	assert.Equal(t, int64(3), p.Sequence())

	_, err = rb.Claim(context.Background())
	assert.ErrorIs(t, err, ringbuffer.ErrClosed)
}

func TestRemainingCapacity_TracksSlowestProcessor(t *testing.T) {
	rb, err := ringbuffer.New[slot](4)
	require.NoError(t, err)

	rb.NewProcessor(func(*slot, int64, bool) {})

	for i := 0; i < 3; i++ {
		require.NoError(t, rb.PublishWith(context.Background(), func(*slot, int64) {}))
	}

	assert.Equal(t, int64(1), rb.RemainingCapacity())
	assert.Equal(t, int64(2), rb.Cursor())
	assert.True(t, rb.IsAvailable(2))
	assert.False(t, rb.IsAvailable(3))
}

func TestTryClaim_ReturnsErrFullInsteadOfWaiting(t *testing.T) {
	// Arrange
	rb, err := ringbuffer.New[slot](2)
	require.NoError(t, err)
	rb.NewProcessor(func(*slot, int64, bool) {})

	for i := 0; i < 2; i++ {
		require.NoError(t, rb.TryPublishWith(func(*slot, int64) {}))
	}

	// Act
	_, err = rb.TryClaim()

	// Assert
	assert.ErrorIs(t, err, ringbuffer.ErrFull)
	assert.Equal(t, int64(1), rb.Cursor(), "a failed claim must not move the cursor")

	rb.Close()
	_, err = rb.TryClaim()
	assert.ErrorIs(t, err, ringbuffer.ErrClosed)
}

func TestProcessor_ReleasesEachSlotBeforeTheBatchEnds(t *testing.T) {
	// Arrange
	rb, err := ringbuffer.New[slot](2)
	require.NoError(t, err)

	reached := make(chan struct{})
	release := make(chan struct{})
	p := rb.NewProcessor(func(_ *slot, seq int64, _ bool) {
		if seq == 1 {
			close(reached)
			<-release
		}
	})
	for i := 0; i < 2; i++ {
		require.NoError(t, rb.PublishWith(context.Background(), func(*slot, int64) {}))
	}

	done := make(chan error, 1)
	go func() { done <- p.Run() }()

	// Act
	<-reached
	seq, err := rb.TryClaim()

	// Assert
	require.NoError(t, err, "slot 0 was handled, so it must be reusable while slot 1 is still running")
	assert.Equal(t, int64(2), seq)
	rb.Publish(seq)

	close(release)
	rb.Close()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("processor did not stop after close")
	}
	assert.Equal(t, int64(2), p.Sequence())
}
