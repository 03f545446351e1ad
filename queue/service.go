package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/tanisthahota/queuectl"
	"github.com/tanisthahota/queuectl/backoff"
	"github.com/tanisthahota/queuectl/job"
	"github.com/tanisthahota/queuectl/store"
)

// CrashedErrorMessage is recorded on jobs recovered from a worker that
// died mid-attempt.
const CrashedErrorMessage = "worker crashed"

// Service enforces legal state transitions and glues the store to the
// retry scheduler. Safe for concurrent use.
type Service struct {
	store    store.Store
	clock    queuectl.Clock
	strategy backoff.Strategy
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source. Tests inject a controllable clock.
func WithClock(c queuectl.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithBackoff overrides the retry delay strategy. By default the
// service builds an exponential strategy from the stored configuration
// on every failure, so config changes take effect immediately.
func WithBackoff(b backoff.Strategy) Option {
	return func(s *Service) { s.strategy = b }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service over the given store.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		clock:  queuectl.SystemClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue validates the spec, fills defaults from the stored
// configuration, and persists a new pending job.
func (s *Service) Enqueue(ctx context.Context, spec job.Spec) (*job.Job, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	cfg, err := s.store.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	maxRetries := cfg.MaxRetries
	if spec.MaxRetries != nil {
		maxRetries = *spec.MaxRetries
	}

	now := s.clock.Now()
	j := &job.Job{
		ID:         spec.ID,
		Command:    spec.Command,
		State:      job.StatePending,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Add(ctx, j); err != nil {
		return nil, err
	}
	s.logger.Info("job enqueued",
		slog.String("job_id", j.ID),
		slog.Int("max_retries", j.MaxRetries),
	)
	return j, nil
}

// Claim is a job owned by the caller together with its held lock. The
// Mark* operations release the lock; callers must still guarantee
// Release on every other exit path, including panic.
type Claim struct {
	Job  *job.Job
	lock store.Lock
}

// Release frees the job's lock. Safe to call more than once.
func (c *Claim) Release() error {
	if c.lock == nil {
		return nil
	}
	l := c.lock
	c.lock = nil
	return l.Release()
}

// ClaimNext returns the oldest claimable job with its lock held and
// state processing persisted, or nil when nothing is eligible.
//
// Candidates are taken from a snapshot and re-read under the lock
// before the transition: another worker may have settled the job
// between snapshot and acquire.
func (s *Service) ClaimNext(ctx context.Context) (*Claim, error) {
	jobs, err := s.store.LoadActive(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	var candidates []*job.Job
	for _, j := range jobs {
		if j.Claimable(now) {
			candidates = append(candidates, j)
		}
	}
	sort.Slice(candidates, func(i, k int) bool {
		if candidates[i].CreatedAt.Equal(candidates[k].CreatedAt) {
			return candidates[i].ID < candidates[k].ID
		}
		return candidates[i].CreatedAt.Before(candidates[k].CreatedAt)
	})

	for _, cand := range candidates {
		lock, err := s.store.TryLock(cand.ID)
		if errors.Is(err, queuectl.ErrLockBusy) {
			continue
		}
		if err != nil {
			return nil, err
		}

		cur, err := s.store.Get(ctx, cand.ID)
		if err != nil {
			_ = lock.Release()
			if errors.Is(err, queuectl.ErrJobNotFound) {
				continue
			}
			return nil, err
		}
		if !cur.Claimable(s.clock.Now()) {
			_ = lock.Release()
			continue
		}

		cur.State = job.StateProcessing
		cur.UpdatedAt = s.clock.Now()
		if err := s.store.Update(ctx, cur); err != nil {
			_ = lock.Release()
			return nil, err
		}
		return &Claim{Job: cur, lock: lock}, nil
	}
	return nil, nil
}

// MarkSucceeded counts the attempt, records completion, and releases
// the claim's lock.
func (s *Service) MarkSucceeded(ctx context.Context, c *Claim) error {
	defer c.Release() //nolint:errcheck // released again is a no-op

	j := c.Job
	j.Attempts++
	j.State = job.StateCompleted
	j.NextRetryAt = nil
	j.ErrorMessage = ""
	j.UpdatedAt = s.clock.Now()
	if err := s.store.Update(ctx, j); err != nil {
		return err
	}
	s.logger.Info("job completed",
		slog.String("job_id", j.ID),
		slog.Int("attempts", j.Attempts),
	)
	return nil
}

// MarkFailed counts the attempt and either schedules a retry with
// exponential backoff or retires the job to the DLQ, then releases the
// claim's lock. The threshold is inclusive: a job whose attempt count
// reaches max_retries retires on that same failure.
func (s *Service) MarkFailed(ctx context.Context, c *Claim, errText string) error {
	defer c.Release() //nolint:errcheck

	cfg, err := s.store.LoadConfig(ctx)
	if err != nil {
		return err
	}

	j := c.Job
	j.Attempts++
	j.ErrorMessage = errText
	j.UpdatedAt = s.clock.Now()

	if j.Attempts >= j.MaxRetries {
		j.State = job.StateDead
		if err := s.store.MoveToDLQ(ctx, j); err != nil {
			return err
		}
		s.logger.Warn("job moved to DLQ after exhausting retries",
			slog.String("job_id", j.ID),
			slog.Int("attempts", j.Attempts),
			slog.String("error", errText),
		)
		return nil
	}

	delay := s.delay(cfg, j.Attempts)
	next := s.clock.Now().Add(delay)
	j.NextRetryAt = &next
	j.State = job.StatePending
	if err := s.store.Update(ctx, j); err != nil {
		return err
	}
	s.logger.Info("job scheduled for retry",
		slog.String("job_id", j.ID),
		slog.Int("attempt", j.Attempts),
		slog.Int("max_retries", j.MaxRetries),
		slog.Duration("delay", delay),
	)
	return nil
}

func (s *Service) delay(cfg queuectl.Config, attempt int) time.Duration {
	if s.strategy != nil {
		return s.strategy.Delay(attempt)
	}
	exp := backoff.NewExponential(cfg.BackoffBase, time.Duration(cfg.BackoffMaxDelay)*time.Second)
	return exp.Delay(attempt)
}

// ListOpts controls filtering for List.
type ListOpts struct {
	// State filters by job state. Empty means all active-set jobs.
	// StateFailed is accepted as an alias for pending jobs carrying a
	// failure from a prior attempt; StateDead reads the DLQ.
	State job.State
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
}

// List returns a read-only snapshot of jobs matching opts.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]*job.Job, error) {
	if opts.State != "" && !opts.State.Valid() {
		return nil, fmt.Errorf("%w: %q", queuectl.ErrInvalidState, opts.State)
	}
	if opts.State == job.StateDead {
		return s.DLQList(ctx, opts.Limit)
	}

	jobs, err := s.store.LoadActive(ctx)
	if err != nil {
		return nil, err
	}
	var out []*job.Job
	for _, j := range jobs {
		switch opts.State {
		case "":
			out = append(out, j)
		case job.StateFailed:
			if j.State == job.StatePending && j.ErrorMessage != "" {
				out = append(out, j)
			}
		default:
			if j.State == opts.State {
				out = append(out, j)
			}
		}
	}
	return truncate(out, opts.Limit), nil
}

// Stats summarizes job counts per state plus the DLQ size.
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Dead       int `json:"dead"`
	Total      int `json:"total"`
}

// Stats counts active-set jobs per state and the DLQ size. Failed
// counts pending jobs awaiting a retry of a failed attempt.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	jobs, err := s.store.LoadActive(ctx)
	if err != nil {
		return Stats{}, err
	}
	dlq, err := s.store.LoadDLQ(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Dead: len(dlq), Total: len(jobs) + len(dlq)}
	for _, j := range jobs {
		switch j.State {
		case job.StatePending:
			st.Pending++
			if j.ErrorMessage != "" {
				st.Failed++
			}
		case job.StateProcessing:
			st.Processing++
		case job.StateCompleted:
			st.Completed++
		}
	}
	return st, nil
}

// DLQList returns a read-only snapshot of the dead letter queue.
func (s *Service) DLQList(ctx context.Context, limit int) ([]*job.Job, error) {
	dlq, err := s.store.LoadDLQ(ctx)
	if err != nil {
		return nil, err
	}
	return truncate(dlq, limit), nil
}

// DLQRequeue re-admits a DLQ job as a fresh pending job: attempts reset
// to zero, retry schedule and error cleared, creation time preserved.
func (s *Service) DLQRequeue(ctx context.Context, id string) (*job.Job, error) {
	j, err := s.store.RequeueFromDLQ(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("job requeued from DLQ", slog.String("job_id", j.ID))
	return j, nil
}

// RecoverStale transitions processing jobs whose lock is free, treating
// each as a failed attempt from a crashed worker: attempts increment
// and the job retries with backoff or retires to the DLQ. Returns the
// number of jobs recovered. Run it at worker startup; without it a
// crashed worker strands its job in processing forever.
func (s *Service) RecoverStale(ctx context.Context) (int, error) {
	jobs, err := s.store.LoadActive(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, snapshot := range jobs {
		if snapshot.State != job.StateProcessing {
			continue
		}
		lock, err := s.store.TryLock(snapshot.ID)
		if errors.Is(err, queuectl.ErrLockBusy) {
			// A live worker still owns this job.
			continue
		}
		if err != nil {
			return recovered, err
		}

		cur, err := s.store.Get(ctx, snapshot.ID)
		if err != nil {
			_ = lock.Release()
			if errors.Is(err, queuectl.ErrJobNotFound) {
				continue
			}
			return recovered, err
		}
		if cur.State != job.StateProcessing {
			_ = lock.Release()
			continue
		}

		s.logger.Warn("recovering job abandoned by crashed worker",
			slog.String("job_id", cur.ID),
		)
		if err := s.MarkFailed(ctx, &Claim{Job: cur, lock: lock}, CrashedErrorMessage); err != nil {
			return recovered, err
		}
		recovered++
	}
	return recovered, nil
}

// PruneLocks removes lock-file residue for jobs no longer in the active
// set. Returns the number of locks removed.
func (s *Service) PruneLocks(ctx context.Context) (int, error) {
	return s.store.PruneLocks(ctx)
}

func truncate(jobs []*job.Job, limit int) []*job.Job {
	if limit > 0 && len(jobs) > limit {
		return jobs[:limit]
	}
	return jobs
}
