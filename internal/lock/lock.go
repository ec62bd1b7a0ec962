// Package lock serializes localserve invocations with an advisory file lock,
// so two commands never interleave their read-modify-write of the hosts file.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileName is the lock file's name inside the config directory.
const FileName = "localserve.lock"

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("another localserve command is running")

// pollInterval is how often Acquire retries a held lock.
const pollInterval = 100 * time.Millisecond

// Lock is a held advisory lock.
type Lock struct {
	file *os.File
	path string
}

// TryAcquire takes the lock at path or fails with ErrLocked.
func TryAcquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	// #nosec G304 - path is the lock file in the user's config directory
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := tryLock(file); err != nil {
		file.Close()
		return nil, err
	}
	return &Lock{file: file, path: path}, nil
}

// Acquire waits for the lock at path until ctx is done.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		l, err := TryAcquire(path)
		if err == nil || !errors.Is(err, ErrLocked) {
			return l, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLocked, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unlock(l.file)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
