package statestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const (
	// LockDir holds flock target files under the base directory.
	LockDir = "locks"

	// DefaultLockTimeout bounds lock acquisition when no timeout is configured.
	DefaultLockTimeout = 5 * time.Second

	// lockRetryInterval is the poll interval while waiting for a held lock.
	lockRetryInterval = 50 * time.Millisecond
)

// ScopeLock is a held per-scope mutation lock. Transitions for a scope are
// strictly serialized by this lock; distinct domains use distinct lock files
// and never contend.
type ScopeLock struct {
	scope Scope
	path  string
	file  *os.File
}

// AcquireLock takes the exclusive mutation lock for a scope, polling a
// non-blocking flock until the store's timeout elapses. On timeout it fails
// fast with ErrLockContention rather than proceeding against a stale read;
// the caller may retry the whole evaluation from scratch.
func (s *Store) AcquireLock(scope Scope) (*ScopeLock, error) {
	path := filepath.Join(s.baseDir, LockDir, scope.String()+".lock")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	deadline := time.Now().Add(s.lockTimeout)
	for {
		err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return &ScopeLock{scope: scope, path: path, file: file}, nil
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) && !errors.Is(err, syscall.EAGAIN) {
			_ = file.Close() //nolint:errcheck // cleanup in error path
			return nil, fmt.Errorf("acquire scope lock %s: %w", scope, err)
		}
		if !time.Now().Before(deadline) {
			_ = file.Close() //nolint:errcheck // cleanup in error path
			return nil, fmt.Errorf("%w: scope %s after %s", ErrLockContention, scope, s.lockTimeout)
		}
		time.Sleep(lockRetryInterval)
	}
}

// Release drops the scope lock. Safe to call once per acquired lock.
func (l *ScopeLock) Release() error {
	unlockErr := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	if unlockErr != nil {
		return fmt.Errorf("unlock scope %s: %w", l.scope, unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close lock file: %w", closeErr)
	}
	return nil
}

// Scope returns the scope this lock serializes.
func (l *ScopeLock) Scope() Scope {
	return l.scope
}
