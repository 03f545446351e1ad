// Package job defines the Job entity, its lifecycle states, and the
// caller-supplied enqueue specification.
package job

import (
	"fmt"
	"strings"
	"time"

	"github.com/tanisthahota/queuectl"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StatePending means the job is waiting to be picked up by a worker.
	StatePending State = "pending"
	// StateProcessing means a worker holds the job's lock and is
	// executing its command.
	StateProcessing State = "processing"
	// StateCompleted means the job finished successfully.
	StateCompleted State = "completed"
	// StateFailed is a filter alias for a pending job with a recorded
	// failure. It is never persisted: a failed attempt resolves
	// immediately into pending (retry scheduled) or dead (retired).
	StateFailed State = "failed"
	// StateDead means the job exhausted its retry budget and lives in
	// the dead letter queue.
	StateDead State = "dead"
)

// Valid reports whether s is a recognized state name.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateProcessing, StateCompleted, StateFailed, StateDead:
		return true
	}
	return false
}

// Job is a shell command tracked through the queue.
type Job struct {
	ID           string     `json:"id"`
	Command      string     `json:"command"`
	State        State      `json:"state"`
	Attempts     int        `json:"attempts"`
	MaxRetries   int        `json:"max_retries"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Claimable reports whether a worker may pick the job up at now: it must
// be pending and past its retry delay, if one is set.
func (j *Job) Claimable(now time.Time) bool {
	if j.State != StatePending {
		return false
	}
	return j.NextRetryAt == nil || !j.NextRetryAt.After(now)
}

// Clone returns an independent copy of the job.
func (j *Job) Clone() *Job {
	cp := *j
	if j.NextRetryAt != nil {
		t := *j.NextRetryAt
		cp.NextRetryAt = &t
	}
	return &cp
}

// Spec is the caller-supplied description of a job to enqueue. MaxRetries
// is optional; when nil the queue fills it from the stored configuration.
type Spec struct {
	ID         string `json:"id"`
	Command    string `json:"command"`
	MaxRetries *int   `json:"max_retries,omitempty"`
}

// Validate checks the spec's required fields. The ID doubles as a lock
// file name, so path separators are rejected.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: id must not be empty", queuectl.ErrInvalidJob)
	}
	if strings.ContainsAny(s.ID, `/\`) {
		return fmt.Errorf("%w: id %q must not contain path separators", queuectl.ErrInvalidJob, s.ID)
	}
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("%w: command must not be empty", queuectl.ErrInvalidJob)
	}
	if s.MaxRetries != nil && *s.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must be >= 0, got %d", queuectl.ErrInvalidJob, *s.MaxRetries)
	}
	return nil
}
