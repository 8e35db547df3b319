package site

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	ferrors "git.home.luguber.info/inful/wikibuilder/internal/foundation/errors"
)

// LockFileName is the advisory lock file created in the destination root.
const LockFileName = ".wikibuilder.lock"

const lockRetryInterval = 50 * time.Millisecond

// DestinationLock guards a destination directory against a second writer
// process. It detects contention; it does not wait for the other writer.
type DestinationLock struct {
	dir   string
	flock *flock.Flock
}

// NewDestinationLock creates a lock for dir. Nothing is created until Acquire.
func NewDestinationLock(dir string) *DestinationLock {
	return &DestinationLock{dir: dir, flock: flock.New(filepath.Join(dir, LockFileName))}
}

// Path returns the lock file path.
func (l *DestinationLock) Path() string { return l.flock.Path() }

// Acquire takes the lock, creating the destination directory if needed.
// A lock held elsewhere is reported as a configuration error.
func (l *DestinationLock) Acquire(ctx context.Context) error {
	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return ferrors.FileSystemError("create destination directory").Fatal().
			WithContext("path", l.dir).WithCause(err).Build()
	}
	tryCtx, cancel := context.WithTimeout(ctx, 2*lockRetryInterval)
	defer cancel()
	locked, err := l.flock.TryLockContext(tryCtx, lockRetryInterval)
	if locked {
		return nil
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return ferrors.ConfigError("destination in use by another process").
		WithContext("path", l.Path()).WithCause(err).Build()
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *DestinationLock) Release() error {
	if !l.flock.Locked() {
		return nil
	}
	return l.flock.Unlock()
}
