package tokenstore

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Lock tuning. A lock file older than lockStaleAfter is assumed to belong to
// a crashed process.
const (
	lockAttempts   = 50
	lockRetryDelay = 100 * time.Millisecond
	lockStaleAfter = 30 * time.Second
)

// fileLock is an advisory cross-process lock implemented as a sibling
// "<path>.lock" file created with O_EXCL.
type fileLock struct {
	f    *os.File
	path string
}

// acquireFileLock blocks until the lock guarding target is held or the
// attempt budget is spent.
func acquireFileLock(target string) (*fileLock, error) {
	path := target + ".lock"

	for range lockAttempts {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			// PID helps when someone has to clean up by hand.
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
			return &fileLock{f: f, path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to acquire file lock: %w", err)
		}

		if stale, statErr := isStale(path); statErr == nil && stale {
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to remove stale lock file %s: %w", path, rmErr)
			}
			continue
		}

		time.Sleep(lockRetryDelay)
	}

	return nil, fmt.Errorf(
		"timeout waiting for file lock after %v",
		time.Duration(lockAttempts)*lockRetryDelay,
	)
}

func isStale(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return time.Since(info.ModTime()) > lockStaleAfter, nil
}

// release drops the lock. Calling it twice returns the os.Remove error of the
// second call.
func (l *fileLock) release() error {
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
	return os.Remove(l.path)
}
