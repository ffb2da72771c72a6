package pidfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrAlreadyRunning means another live process holds the PID file
var ErrAlreadyRunning = errors.New("mediator daemon is already running")

// PIDFile enforces a single running mediator daemon per PID file path
type PIDFile struct {
	path string
}

// New creates a new PIDFile manager
func New(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the PID file location
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire writes the current PID, replacing a stale or unreadable file.
// It fails with ErrAlreadyRunning when the recorded process is alive.
func (p *PIDFile) Acquire() error {
	pid, err := p.Owner()
	switch {
	case err == nil && pid != os.Getpid() && isProcessRunning(pid):
		return fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, pid)
	case err == nil, !errors.Is(err, os.ErrNotExist):
		// stale or garbled PID file
		_ = os.Remove(p.path)
	}

	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Owner returns the PID recorded in the file
func (p *PIDFile) Owner() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file %s: %w", p.path, err)
	}
	return pid, nil
}

// Release removes the PID file
func (p *PIDFile) Release() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// KillExisting sends SIGTERM to the recorded owner and waits up to timeout
// for it to exit. A missing PID file or dead owner is not an error.
func (p *PIDFile) KillExisting(timeout time.Duration) error {
	pid, err := p.Owner()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if pid == os.Getpid() || !isProcessRunning(pid) {
		return nil
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal PID %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for isProcessRunning(pid) {
		if time.Now().After(deadline) {
			return fmt.Errorf("PID %d still running after %s", pid, timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

// isProcessRunning sends signal 0, which only checks that pid exists
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	switch {
	case err == nil:
		return true
	case errors.Is(err, syscall.EPERM):
		// exists, owned by another user
		return true
	default:
		return false
	}
}
