package store

import (
	"context"

	"github.com/tanisthahota/queuectl"
	"github.com/tanisthahota/queuectl/job"
)

// Lock is a held exclusive per-job lock. Release is idempotent and must
// be called on every exit path, including panic recovery.
type Lock interface {
	Release() error
}

// Store is the persistence contract for the queue: the active set, the
// dead letter queue, the configuration record, and per-job mutual
// exclusion. Backends: store/fs (filesystem, production) and
// store/memory (tests).
//
// Field-level job mutations must be made while holding the job's lock
// from TryLock. Structural operations (Add, MoveToDLQ, RequeueFromDLQ)
// are serialized internally by the backend.
type Store interface {
	// Add appends a job to the active set. Fails with ErrDuplicateJob
	// when the ID already exists in the active set or the DLQ.
	Add(ctx context.Context, j *job.Job) error

	// Update replaces the active-set job with the same ID. Fails with
	// ErrJobNotFound when absent.
	Update(ctx context.Context, j *job.Job) error

	// Get retrieves an active-set job by ID.
	Get(ctx context.Context, id string) (*job.Job, error)

	// LoadActive returns a snapshot of the active set in insertion order.
	LoadActive(ctx context.Context) ([]*job.Job, error)

	// LoadDLQ returns a snapshot of the dead letter queue in insertion
	// order.
	LoadDLQ(ctx context.Context) ([]*job.Job, error)

	// MoveToDLQ removes the job from the active set and appends it to
	// the DLQ in state dead, as a single logical operation.
	MoveToDLQ(ctx context.Context, j *job.Job) error

	// RequeueFromDLQ removes the DLQ entry and appends it back to the
	// active set as a fresh pending job: attempts reset to zero, retry
	// schedule and error cleared, created_at preserved.
	RequeueFromDLQ(ctx context.Context, id string) (*job.Job, error)

	// LoadConfig returns the stored configuration, or defaults when no
	// config has been saved yet.
	LoadConfig(ctx context.Context) (queuectl.Config, error)

	// SaveConfig validates and persists the configuration.
	SaveConfig(ctx context.Context, cfg queuectl.Config) error

	// TryLock acquires the job's exclusive lock without blocking. Fails
	// with ErrLockBusy when another holder has it. The lock survives
	// until Release or holder process exit, whichever comes first.
	TryLock(id string) (Lock, error)

	// PruneLocks removes lock residue for jobs that are no longer in
	// the active set and are not currently locked. Returns the number
	// of locks removed.
	PruneLocks(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
