package vaultstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// lockRetryInterval bounds how often a blocked WithLock call re-attempts the
// advisory flock while waiting for a concurrent mutator to finish.
const lockRetryInterval = 25 * time.Millisecond

// ErrLockTimeout is returned when a lock cannot be acquired before ctx is done.
var ErrLockTimeout = errors.New("vaultstore: timed out acquiring lock")

// WithLock acquires an exclusive advisory lock at ops/locks/<kind>.lock,
// invokes fn, and releases the lock on every exit path (including panics
// propagated from fn). It mirrors the flock-based single-flight lease in the
// teacher's cmd/ao/rpi_loop_supervisor.go and cmd/ao/rpi_ledger.go, but
// blocks with bounded backoff instead of failing fast, since the engine
// expects at most one mutator at a time and is willing to wait for it.
func (v *Vault) WithLock(ctx context.Context, kind string, fn func() error) error {
	lockPath := v.Path(filepath.Join(DirLocks, kind+".lock"))
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o700); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file %s: %w", lockPath, err)
	}
	defer func() { _ = file.Close() }()

	if err := acquireFlock(ctx, file); err != nil {
		return err
	}
	defer func() { _ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN) }()

	return fn()
}

// acquireFlock retries a non-blocking exclusive flock until it succeeds or
// ctx is done, so a caller can bound how long it waits on a stuck mutator.
func acquireFlock(ctx context.Context, file *os.File) error {
	for {
		err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return nil
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) && !errors.Is(err, syscall.EAGAIN) {
			return fmt.Errorf("acquire lock: %w", err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrLockTimeout, file.Name())
		case <-time.After(lockRetryInterval):
		}
	}
}
