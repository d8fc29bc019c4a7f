package output

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// LockName is the lock file created in the output directory while files
// are being written.
const LockName = ".jenkins2gha.lock"

// dirLock is a PID file held with flock(2). The lock lives as long as
// the descriptor stays open.
type dirLock struct {
	path string
	f    *os.File
}

// acquireDirLock takes an exclusive non-blocking lock on dir and records
// the current PID in the lock file.
func acquireDirLock(dir string) (*dirLock, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	lockPath := filepath.Join(dir, LockName)

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	fail := func(step string, err error) (*dirLock, error) {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("output directory %s is locked by another conversion: %w", dir, err)
	}
	if err := f.Truncate(0); err != nil {
		return fail("truncate lock file", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return fail("write pid", err)
	}
	if err := f.Sync(); err != nil {
		return fail("sync lock file", err)
	}
	return &dirLock{path: lockPath, f: f}, nil
}

// release unlocks and removes the lock file.
func (l *dirLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	if rmErr := os.Remove(l.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}
