package mediator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture_SettlesOnce(t *testing.T) {
	f := newFuture[int]("NextNumber")
	assert.False(t, f.IsDone())

	f.settle(7, nil)
	f.settle(8, errors.New("ignored"))

	got, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.True(t, f.IsDone())
}

func TestFuture_WaitTimesOut(t *testing.T) {
	f := newFuture[int]("NextNumber")

	_, err := f.Wait(context.Background(), 10*time.Millisecond)

	var timeoutErr *DispatchTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 10*time.Millisecond, timeoutErr.Timeout)
	assert.ErrorIs(t, err, ErrDispatchTimeout)
}

func TestFuture_GetHonoursContext(t *testing.T) {
	f := newFuture[int]("NextNumber")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Get(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestFuture_RejectsMismatchedResponseType(t *testing.T) {
	f := newFuture[int]("NextNumber")

	f.settle("not an int", nil)

	_, err := f.Get(context.Background())
	assert.ErrorContains(t, err, "expected int")
}

func TestFuture_NilResponseYieldsZeroValue(t *testing.T) {
	f := newFuture[Unit]("Increment")

	f.settle(nil, nil)

	got, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Unit{}, got)
}
