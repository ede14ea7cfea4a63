package scheduler

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/skymonitor/meteor-go/internal/errors"
)

// ErrLockHeld is returned when another process holds the run lock.
var ErrLockHeld = errors.NewStd("run lock held by another process")

// FileLock is an advisory, non-blocking flock on a lock file. It serializes
// pipeline runs across processes on the same host; the kernel releases it
// automatically if the holder dies.
type FileLock struct {
	path string
	file *os.File
}

// AcquireLock takes the lock or fails immediately. A held lock yields a
// lock-category error wrapping ErrLockHeld.
func AcquireLock(path string) (*FileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, lockError(path, fmt.Errorf("creating lock directory: %w", err))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, lockError(path, fmt.Errorf("opening lock file: %w", err))
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, lockError(path, ErrLockHeld)
		}
		return nil, lockError(path, fmt.Errorf("flock: %w", err))
	}

	// The PID is informational only; the flock is what protects the file.
	_ = f.Truncate(0)
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())

	return &FileLock{path: path, file: f}, nil
}

// Release drops the lock. Safe to call once per acquired lock.
func (l *FileLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return lockError(l.path, fmt.Errorf("unlock: %w", err))
	}
	if closeErr != nil {
		return lockError(l.path, closeErr)
	}
	return nil
}

// IsLockHeld reports whether err means another process holds the lock.
func IsLockHeld(err error) bool {
	return errors.Is(err, ErrLockHeld)
}

func lockError(path string, err error) error {
	return errors.New(err).
		Component("scheduler").
		Category(errors.CategoryLock).
		Context("lock_path", path).
		Build()
}
