// Package memory provides a fully in-memory implementation of
// store.Store. Safe for concurrent access. Intended for unit testing.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tanisthahota/queuectl"
	"github.com/tanisthahota/queuectl/job"
	"github.com/tanisthahota/queuectl/store"
)

// Ensure Store implements the contract at compile time.
var _ store.Store = (*Store)(nil)

// Store keeps both collections as ordered slices, mirroring the JSON
// array layout of the filesystem backend.
type Store struct {
	mu     sync.RWMutex
	active []*job.Job
	dlq    []*job.Job
	config *queuectl.Config

	lockMu sync.Mutex
	held   map[string]bool

	clock queuectl.Clock
}

// Option configures the Store.
type Option func(*Store)

// WithClock sets the time source used to stamp structural mutations.
func WithClock(c queuectl.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		held:  make(map[string]bool),
		clock: queuectl.SystemClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

func findJob(jobs []*job.Job, id string) int {
	for i, j := range jobs {
		if j.ID == id {
			return i
		}
	}
	return -1
}

// ──────────────────────────────────────────────────
// Job collections
// ──────────────────────────────────────────────────

// Add appends a job to the active set.
func (s *Store) Add(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if findJob(s.active, j.ID) >= 0 || findJob(s.dlq, j.ID) >= 0 {
		return fmt.Errorf("%w: %s", queuectl.ErrDuplicateJob, j.ID)
	}
	s.active = append(s.active, j.Clone())
	return nil
}

// Update replaces the stored job with the same ID.
func (s *Store) Update(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := findJob(s.active, j.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", queuectl.ErrJobNotFound, j.ID)
	}
	s.active[i] = j.Clone()
	return nil
}

// Get retrieves an active-set job by ID.
func (s *Store) Get(_ context.Context, id string) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := findJob(s.active, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", queuectl.ErrJobNotFound, id)
	}
	return s.active[i].Clone(), nil
}

// LoadActive returns a snapshot of the active set.
func (s *Store) LoadActive(_ context.Context) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*job.Job, len(s.active))
	for i, j := range s.active {
		out[i] = j.Clone()
	}
	return out, nil
}

// LoadDLQ returns a snapshot of the dead letter queue.
func (s *Store) LoadDLQ(_ context.Context) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*job.Job, len(s.dlq))
	for i, j := range s.dlq {
		out[i] = j.Clone()
	}
	return out, nil
}

// MoveToDLQ removes the job from the active set and appends it to the
// DLQ in state dead.
func (s *Store) MoveToDLQ(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := findJob(s.active, j.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", queuectl.ErrJobNotFound, j.ID)
	}
	s.active = append(s.active[:i], s.active[i+1:]...)

	dead := j.Clone()
	dead.State = job.StateDead
	dead.UpdatedAt = s.clock.Now()
	s.dlq = append(s.dlq, dead)
	return nil
}

// RequeueFromDLQ moves the DLQ entry back into the active set as a
// fresh pending job.
func (s *Store) RequeueFromDLQ(_ context.Context, id string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := findJob(s.dlq, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", queuectl.ErrJobNotFound, id)
	}
	if findJob(s.active, id) >= 0 {
		return nil, fmt.Errorf("%w: %s", queuectl.ErrDuplicateJob, id)
	}

	j := s.dlq[i].Clone()
	j.State = job.StatePending
	j.Attempts = 0
	j.NextRetryAt = nil
	j.ErrorMessage = ""
	j.UpdatedAt = s.clock.Now()

	s.dlq = append(s.dlq[:i], s.dlq[i+1:]...)
	s.active = append(s.active, j)
	return j.Clone(), nil
}

// ──────────────────────────────────────────────────
// Config
// ──────────────────────────────────────────────────

// LoadConfig returns the saved configuration, or defaults.
func (s *Store) LoadConfig(_ context.Context) (queuectl.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config == nil {
		return queuectl.DefaultConfig(), nil
	}
	return *s.config, nil
}

// SaveConfig validates and stores the configuration.
func (s *Store) SaveConfig(_ context.Context, cfg queuectl.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = &cfg
	return nil
}

// ──────────────────────────────────────────────────
// Locks
// ──────────────────────────────────────────────────

type memLock struct {
	s  *Store
	id string

	mu       sync.Mutex
	released bool
}

// Release frees the lock. Idempotent.
func (l *memLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	l.released = true
	l.s.lockMu.Lock()
	delete(l.s.held, l.id)
	l.s.lockMu.Unlock()
	return nil
}

// TryLock acquires the job's lock without blocking.
func (s *Store) TryLock(id string) (store.Lock, error) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if s.held[id] {
		return nil, fmt.Errorf("%w: %s", queuectl.ErrLockBusy, id)
	}
	s.held[id] = true
	return &memLock{s: s, id: id}, nil
}

// PruneLocks is a no-op for the memory store; locks leave no residue.
func (s *Store) PruneLocks(_ context.Context) (int, error) { return 0, nil }
