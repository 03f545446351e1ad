package fs

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/tanisthahota/queuectl"
	"github.com/tanisthahota/queuectl/store"
)

// jobLock wraps a held flock handle. The OS drops the lock if the
// holding process dies, so abandoned claims never wedge the queue.
type jobLock struct {
	fl *flock.Flock

	mu       sync.Mutex
	released bool
}

var _ store.Lock = (*jobLock)(nil)

// Release unlocks and closes the lock file handle. Idempotent.
func (l *jobLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	l.released = true
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("queuectl/fs: release lock %s: %w", l.fl.Path(), err)
	}
	return nil
}

// TryLock acquires the job's advisory lock without blocking, so a
// contending worker can move on to the next candidate immediately.
func (s *Store) TryLock(id string) (store.Lock, error) {
	fl := flock.New(filepath.Join(s.root, locksDir, id+lockSuffix))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("queuectl/fs: lock %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", queuectl.ErrLockBusy, id)
	}
	return &jobLock{fl: fl}, nil
}
