// Package fs implements the queue store on the local filesystem.
//
// Layout under the root directory:
//
//	jobs.json          active-set array
//	dlq.json           dead letter queue array
//	config.json        configuration record
//	locks/<id>.lock    one advisory lock file per claimed job
//	locks/.root.lock   serializes writes to the JSON files
//
// Writes go to <path>.tmp and are renamed over the target, so readers
// observe either the old or the new file, never a torn one. Every write
// is made while holding the root lock; concurrent writers in separate
// processes therefore cannot clobber each other's read-modify-write
// cycles. Per-job locks are non-blocking flock and are released by the
// OS when the holding process exits, which is what makes crashed
// workers' jobs reclaimable.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/tanisthahota/queuectl"
	"github.com/tanisthahota/queuectl/job"
	"github.com/tanisthahota/queuectl/store"
)

// Ensure Store implements the contract at compile time.
var _ store.Store = (*Store)(nil)

const (
	jobsFile   = "jobs.json"
	dlqFile    = "dlq.json"
	configFile = "config.json"
	locksDir   = "locks"
	rootLock   = ".root.lock"
	lockSuffix = ".lock"
)

// Store persists the queue as JSON files under a root directory.
// Safe for concurrent use by multiple processes.
type Store struct {
	root  string
	clock queuectl.Clock
}

// Option configures the Store.
type Option func(*Store)

// WithClock sets the time source used to stamp structural mutations.
func WithClock(c queuectl.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// New opens a store rooted at dir, creating the directory tree if needed.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{root: dir, clock: queuectl.SystemClock()}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(filepath.Join(dir, locksDir), 0o755); err != nil {
		return nil, fmt.Errorf("queuectl/fs: create %s: %w", dir, err)
	}
	return s, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Close is a no-op; the store holds no long-lived resources.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// JSON file primitives
// ──────────────────────────────────────────────────

func (s *Store) path(name string) string { return filepath.Join(s.root, name) }

// readJobs loads a job array file. A missing file is an empty collection.
func (s *Store) readJobs(name string) ([]*job.Job, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queuectl/fs: read %s: %w", name, err)
	}
	var jobs []*job.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("queuectl/fs: decode %s: %w", name, err)
	}
	return jobs, nil
}

// writeJSON persists v atomically: marshal, write <path>.tmp, rename.
func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("queuectl/fs: encode %s: %w", name, err)
	}
	path := s.path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("queuectl/fs: write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("queuectl/fs: rename %s: %w", name, err)
	}
	return nil
}

// withRootLock runs fn while holding the root lock that serializes all
// writers. The lock is short-held, so a blocking acquire is fine here;
// only per-job claim locking needs the non-blocking variant.
func (s *Store) withRootLock(fn func() error) error {
	fl := flock.New(filepath.Join(s.root, locksDir, rootLock))
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("queuectl/fs: acquire root lock: %w", err)
	}
	defer fl.Unlock() //nolint:errcheck // release on process exit regardless
	return fn()
}

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

// Add appends a job to the active set after checking both collections
// for an ID collision.
func (s *Store) Add(_ context.Context, j *job.Job) error {
	return s.withRootLock(func() error {
		jobs, err := s.readJobs(jobsFile)
		if err != nil {
			return err
		}
		dlq, err := s.readJobs(dlqFile)
		if err != nil {
			return err
		}
		if findJob(jobs, j.ID) >= 0 || findJob(dlq, j.ID) >= 0 {
			return fmt.Errorf("%w: %s", queuectl.ErrDuplicateJob, j.ID)
		}
		jobs = append(jobs, j.Clone())
		return s.writeJSON(jobsFile, jobs)
	})
}

// Update replaces the stored job with the same ID.
func (s *Store) Update(_ context.Context, j *job.Job) error {
	return s.withRootLock(func() error {
		jobs, err := s.readJobs(jobsFile)
		if err != nil {
			return err
		}
		i := findJob(jobs, j.ID)
		if i < 0 {
			return fmt.Errorf("%w: %s", queuectl.ErrJobNotFound, j.ID)
		}
		jobs[i] = j.Clone()
		return s.writeJSON(jobsFile, jobs)
	})
}

// Get retrieves an active-set job by ID.
func (s *Store) Get(_ context.Context, id string) (*job.Job, error) {
	jobs, err := s.readJobs(jobsFile)
	if err != nil {
		return nil, err
	}
	i := findJob(jobs, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", queuectl.ErrJobNotFound, id)
	}
	return jobs[i].Clone(), nil
}

// LoadActive returns a snapshot of the active set.
func (s *Store) LoadActive(_ context.Context) ([]*job.Job, error) {
	return s.readJobs(jobsFile)
}

// LoadDLQ returns a snapshot of the dead letter queue.
func (s *Store) LoadDLQ(_ context.Context) ([]*job.Job, error) {
	return s.readJobs(dlqFile)
}

// MoveToDLQ removes the job from the active set and appends it to the
// DLQ in state dead.
func (s *Store) MoveToDLQ(_ context.Context, j *job.Job) error {
	return s.withRootLock(func() error {
		jobs, err := s.readJobs(jobsFile)
		if err != nil {
			return err
		}
		i := findJob(jobs, j.ID)
		if i < 0 {
			return fmt.Errorf("%w: %s", queuectl.ErrJobNotFound, j.ID)
		}
		jobs = append(jobs[:i], jobs[i+1:]...)
		if err := s.writeJSON(jobsFile, jobs); err != nil {
			return err
		}

		dead := j.Clone()
		dead.State = job.StateDead
		dead.UpdatedAt = s.clock.Now()

		dlq, err := s.readJobs(dlqFile)
		if err != nil {
			return err
		}
		dlq = append(dlq, dead)
		return s.writeJSON(dlqFile, dlq)
	})
}

// RequeueFromDLQ moves the DLQ entry back into the active set as a
// fresh pending job. Its creation time is preserved so the job sorts
// back into FIFO order by its original position.
func (s *Store) RequeueFromDLQ(_ context.Context, id string) (*job.Job, error) {
	var requeued *job.Job
	err := s.withRootLock(func() error {
		dlq, err := s.readJobs(dlqFile)
		if err != nil {
			return err
		}
		i := findJob(dlq, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", queuectl.ErrJobNotFound, id)
		}
		jobs, err := s.readJobs(jobsFile)
		if err != nil {
			return err
		}
		if findJob(jobs, id) >= 0 {
			return fmt.Errorf("%w: %s", queuectl.ErrDuplicateJob, id)
		}

		j := dlq[i].Clone()
		j.State = job.StatePending
		j.Attempts = 0
		j.NextRetryAt = nil
		j.ErrorMessage = ""
		j.UpdatedAt = s.clock.Now()

		dlq = append(dlq[:i], dlq[i+1:]...)
		if err := s.writeJSON(dlqFile, dlq); err != nil {
			return err
		}
		jobs = append(jobs, j)
		if err := s.writeJSON(jobsFile, jobs); err != nil {
			return err
		}
		requeued = j.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return requeued, nil
}

// ──────────────────────────────────────────────────
// Config
// ──────────────────────────────────────────────────

// LoadConfig reads config.json, falling back to defaults when absent.
func (s *Store) LoadConfig(_ context.Context) (queuectl.Config, error) {
	data, err := os.ReadFile(s.path(configFile))
	if errors.Is(err, fs.ErrNotExist) {
		return queuectl.DefaultConfig(), nil
	}
	if err != nil {
		return queuectl.Config{}, fmt.Errorf("queuectl/fs: read %s: %w", configFile, err)
	}
	var cfg queuectl.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return queuectl.Config{}, fmt.Errorf("queuectl/fs: decode %s: %w", configFile, err)
	}
	if err := cfg.Validate(); err != nil {
		return queuectl.Config{}, err
	}
	return cfg, nil
}

// SaveConfig validates and persists the configuration.
func (s *Store) SaveConfig(_ context.Context, cfg queuectl.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.withRootLock(func() error {
		return s.writeJSON(configFile, cfg)
	})
}

// ──────────────────────────────────────────────────
// Lock maintenance
// ──────────────────────────────────────────────────

// PruneLocks removes lock files for jobs that are no longer in the
// active set and are not currently held. Lock files are created on
// first claim and otherwise never removed, so a long-lived queue
// accumulates them.
func (s *Store) PruneLocks(ctx context.Context) (int, error) {
	jobs, err := s.LoadActive(ctx)
	if err != nil {
		return 0, err
	}
	active := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		active[j.ID] = struct{}{}
	}

	entries, err := os.ReadDir(filepath.Join(s.root, locksDir))
	if err != nil {
		return 0, fmt.Errorf("queuectl/fs: read locks dir: %w", err)
	}

	pruned := 0
	for _, entry := range entries {
		name := entry.Name()
		if name == rootLock || !strings.HasSuffix(name, lockSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, lockSuffix)
		if _, ok := active[id]; ok {
			continue
		}
		lock, err := s.TryLock(id)
		if errors.Is(err, queuectl.ErrLockBusy) {
			continue
		}
		if err != nil {
			return pruned, err
		}
		rmErr := os.Remove(filepath.Join(s.root, locksDir, name))
		if err := lock.Release(); err != nil {
			return pruned, err
		}
		if rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return pruned, fmt.Errorf("queuectl/fs: remove lock %s: %w", name, rmErr)
		}
		pruned++
	}
	return pruned, nil
}
