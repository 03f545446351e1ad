package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tanisthahota/queuectl/id"
	"github.com/tanisthahota/queuectl/queue"
)

// Pool manages a set of concurrent worker loops that poll the queue
// service for eligible jobs and execute them. Per-job file locks make
// the loops safe to run alongside any number of other worker processes
// on the same host.
type Pool struct {
	svc          *queue.Service
	runner       Runner
	logger       *slog.Logger
	count        int
	pollInterval time.Duration

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithCount sets the number of concurrent worker loops.
func WithCount(n int) Option {
	return func(p *Pool) { p.count = n }
}

// WithPollInterval sets how often an idle worker re-checks the queue.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pool) { p.pollInterval = d }
}

// WithRunner sets the command runner.
func WithRunner(r Runner) Option {
	return func(p *Pool) { p.runner = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a worker pool over the queue service.
func NewPool(svc *queue.Service, opts ...Option) *Pool {
	p := &Pool{
		svc:          svc,
		runner:       &ShellRunner{},
		logger:       slog.Default(),
		count:        1,
		pollInterval: DefaultPollInterval,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs the crash-recovery sweep, prunes stale lock files, and
// launches the worker loops. It returns immediately.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	p.running = true

	if n, err := p.svc.RecoverStale(ctx); err != nil {
		p.logger.Error("recovery sweep failed", slog.String("error", err.Error()))
	} else if n > 0 {
		p.logger.Info("recovered abandoned jobs", slog.Int("count", n))
	}
	if n, err := p.svc.PruneLocks(ctx); err != nil {
		p.logger.Warn("lock prune failed", slog.String("error", err.Error()))
	} else if n > 0 {
		p.logger.Info("pruned stale lock files", slog.Int("count", n))
	}

	p.logger.Info("worker pool starting", slog.Int("count", p.count))
	for i := 0; i < p.count; i++ {
		wid := id.NewWorkerID()
		logger := p.logger.With(slog.String("worker_id", wid.String()))
		p.wg.Add(1)
		go p.loop(logger)
	}
	return nil
}

// Stop signals the workers and waits for in-flight attempts to finish.
// A running attempt is never aborted; the execution timeout bounds how
// long the wait can take. If ctx expires first, Stop returns its error
// while the attempts continue to settle in the background.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping")
	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out waiting for in-flight attempts")
		return ctx.Err()
	}
}

// loop is run by each worker goroutine.
func (p *Pool) loop(logger *slog.Logger) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		c, err := p.svc.ClaimNext(context.Background())
		if err != nil {
			logger.Error("claim error", slog.String("error", err.Error()))
			p.sleep()
			continue
		}
		if c == nil {
			p.sleep()
			continue
		}
		p.execute(logger, c)
	}
}

// execute runs one attempt and reports the outcome. The lock release is
// deferred so a panicking runner cannot leave the job wedged.
func (p *Pool) execute(logger *slog.Logger, c *queue.Claim) {
	defer c.Release() //nolint:errcheck // Mark* already released on the happy path

	j := c.Job
	logger.Info("processing job",
		slog.String("job_id", j.ID),
		slog.String("command", j.Command),
	)

	// Shutdown must not abort an in-flight attempt, so the runner gets
	// a fresh context; its own timeout still bounds the attempt.
	runErr := p.runner.Run(context.Background(), j.Command)
	if runErr == nil {
		if err := p.svc.MarkSucceeded(context.Background(), c); err != nil {
			logger.Error("failed to record success",
				slog.String("job_id", j.ID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	if err := p.svc.MarkFailed(context.Background(), c, runErr.Error()); err != nil {
		logger.Error("failed to record failure",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
}

// sleep waits out the poll interval, waking immediately on stop.
func (p *Pool) sleep() {
	select {
	case <-time.After(p.pollInterval):
	case <-p.stopCh:
	}
}
