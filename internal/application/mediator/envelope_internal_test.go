package mediator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echo struct {
	QueryOf[int]
	N int
}

func TestEnvelope_SlotsReturnToEmptyAcrossWrapAround(t *testing.T) {
	// Arrange
	const size = 8
	registry := NewRegistry(StaticBindings(
		BindQuery[echo, int]("echoHandler", QueryHandlerFunc[echo, int](func(_ context.Context, q echo) (int, error) {
			return q.N, nil
		})),
	))
	m, err := New(registry, WithBufferSize(size), WithExecutionGroups(2))
	require.NoError(t, err)
	require.NoError(t, m.Initialize(context.Background()))
	t.Cleanup(func() { _ = m.Close(context.Background()) })

	// Act + Assert
	for i := 0; i < 3*size; i++ {
		group := i%2 + 1
		f, err := DispatchAsync[int](context.Background(), m, echo{N: i}, WithExecutionGroup(group))
		require.NoError(t, err)
		got, err := f.Wait(context.Background(), time.Second)
		require.NoError(t, err)
		assert.Equal(t, i, got)

		slot := m.engine.ring.Slot(int64(i))
		assert.True(t, slot.isEmpty(), "slot for sequence %d still occupied after its future settled", i)
		assert.Equal(t, int32(0), slot.group.Load())
		assert.Equal(t, int64(i), slot.sequence)
	}

	for i := 0; i < size; i++ {
		assert.True(t, m.engine.ring.SlotAt(i).isEmpty(), "slot %d", i)
	}
}

func TestEnvelope_EmptyPayloadFailsPendingCompletion(t *testing.T) {
	m, err := New(NewRegistry(nil))
	require.NoError(t, err)
	w := &Worker{ID: "group-1-test", Group: 1, mediatorID: m.id}

	f := newFuture[int]("echo")
	env := &envelope{}
	env.fill(context.Background(), 0, 1, KindQuery, nil, f, nil)

	m.process(w, env)

	_, err = f.Get(context.Background())
	assert.ErrorIs(t, err, ErrEmptyPayload)
	assert.True(t, env.isEmpty())
	assert.Equal(t, uint64(1), w.Processed())
}

func TestEnvelope_EmptyPayloadWithoutCompletionIsNoop(t *testing.T) {
	m, err := New(NewRegistry(nil))
	require.NoError(t, err)
	w := &Worker{ID: "group-1-test", Group: 1, mediatorID: m.id}

	env := &envelope{}
	env.fill(context.Background(), 0, 1, KindEvent, nil, nil, nil)

	assert.NotPanics(t, func() { m.process(w, env) })
	assert.True(t, env.isEmpty())
}

func TestKindOf_ClassifiesMessages(t *testing.T) {
	type cmd struct{ CommandOf[Unit] }
	type ev struct{ EventOf }

	assert.Equal(t, KindCommand, kindOf(cmd{}))
	assert.Equal(t, KindQuery, kindOf(echo{}))
	assert.Equal(t, KindEvent, kindOf(ev{}))
	assert.Equal(t, KindNone, kindOf(42))
	assert.Equal(t, "query", KindQuery.String())
}
