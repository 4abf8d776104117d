package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked means another process holds the lock
var ErrLocked = errors.New("replica locked by another process")

// ReplicaLock is an advisory lock guarding a replica root against a second
// mirror process. The lock file sits next to the replica, never inside it,
// so it is not mirrored or cleaned.
type ReplicaLock struct {
	flock *flock.Flock
}

// PathFor returns the lock file path for a replica root
func PathFor(replicaRoot string) string {
	return filepath.Clean(replicaRoot) + ".lock"
}

// New prepares a lock for replicaRoot without acquiring it
func New(replicaRoot string) *ReplicaLock {
	return &ReplicaLock{flock: flock.New(PathFor(replicaRoot))}
}

// Acquire takes the lock or returns ErrLocked without blocking
func (l *ReplicaLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0755); err != nil {
		return fmt.Errorf("failed to create directory for lock file: %w", err)
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", l.flock.Path(), err)
	}
	if !locked {
		return ErrLocked
	}
	return nil
}

// Release unlocks. The lock file stays: removing it would let a process
// that opened the old file and one that creates a new file both hold a
// lock. It does nothing when this process does not hold the lock.
func (l *ReplicaLock) Release() error {
	if !l.flock.Locked() {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.flock.Path(), err)
	}
	return nil
}

// Path returns the lock file path
func (l *ReplicaLock) Path() string {
	return l.flock.Path()
}
