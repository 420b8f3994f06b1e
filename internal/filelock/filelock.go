// Package filelock provides an advisory lock on a build directory so that
// several processes sharing one public root do not rebuild the same
// artifact at the same time.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Name is the lock file created inside the locked directory. It starts
// with a dot so it never matches an artifact hash prefix.
const Name = ".build.lock"

// ErrTimeout is returned when the lock could not be taken in time.
var ErrTimeout = errors.New("filelock: timed out waiting for lock")

const retryInterval = 25 * time.Millisecond

// Lock is a held lock. Unlock releases it.
type Lock struct {
	f *os.File
}

// Acquire takes an exclusive lock on dir, creating the directory and the
// lock file as needed. A zero timeout blocks until the lock is free.
func Acquire(dir string, timeout time.Duration) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	path := filepath.Join(dir, Name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if timeout <= 0 {
		if err := lockFile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("lock %s: %w", path, err)
		}
		return &Lock{f: f}, nil
	}

	deadline := time.Now().Add(timeout)
	for {
		ok, err := tryLockFile(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("lock %s: %w", path, err)
		}
		if ok {
			return &Lock{f: f}, nil
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, ErrTimeout
		}
		time.Sleep(retryInterval)
	}
}

// Unlock releases the lock. The lock file stays in place.
func (l *Lock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unlockFile(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}
