//go:build !unix

package filelock

import (
	"os"
	"sync"
	"time"
)

// Without flock(2) the lock only serialises builds inside this process.
var (
	mu     sync.Mutex
	locked = map[string]bool{}
)

func lockFile(f *os.File) error {
	for {
		ok, _ := tryLockFile(f)
		if ok {
			return nil
		}
		sleepRetry()
	}
}

func tryLockFile(f *os.File) (bool, error) {
	mu.Lock()
	defer mu.Unlock()
	if locked[f.Name()] {
		return false, nil
	}
	locked[f.Name()] = true
	return true, nil
}

func unlockFile(f *os.File) error {
	mu.Lock()
	defer mu.Unlock()
	delete(locked, f.Name())
	return nil
}

func sleepRetry() { time.Sleep(retryInterval) }
