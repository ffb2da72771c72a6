package pidfile_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosminstn/disruptor-mediator/internal/infrastructure/pidfile"
)

func TestAcquire_WritesCurrentPID(t *testing.T) {
	// Arrange
	p := pidfile.New(filepath.Join(t.TempDir(), "mediator.pid"))

	// Act
	require.NoError(t, p.Acquire())

	// Assert
	pid, err := p.Owner()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, p.Release())
	assert.NoFileExists(t, p.Path())
	require.NoError(t, p.Release(), "releasing twice is fine")
}

func TestAcquire_RejectsLiveOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mediator.pid")
	// PID 1 is always alive
	require.NoError(t, os.WriteFile(path, []byte("1\n"), 0o644))

	err := pidfile.New(path).Acquire()

	assert.ErrorIs(t, err, pidfile.ErrAlreadyRunning)
}

func TestAcquire_ReplacesGarbledFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mediator.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o644))
	p := pidfile.New(path)

	require.NoError(t, p.Acquire())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid())+"\n", string(data))
}

func TestKillExisting_NothingToKill(t *testing.T) {
	p := pidfile.New(filepath.Join(t.TempDir(), "mediator.pid"))
	require.NoError(t, p.KillExisting(time.Second))

	require.NoError(t, p.Acquire())
	assert.NoError(t, p.KillExisting(time.Second), "never kills the current process")
}
