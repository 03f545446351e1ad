package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tanisthahota/queuectl"
	"github.com/tanisthahota/queuectl/job"
	"github.com/tanisthahota/queuectl/queue"
	"github.com/tanisthahota/queuectl/store/memory"
)

// fakeClock is a controllable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupService(t *testing.T) (*queue.Service, *memory.Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	st := memory.New(memory.WithClock(clock))
	svc := queue.NewService(st, queue.WithClock(clock))
	return svc, st, clock
}

func intPtr(n int) *int { return &n }

// ---------------------------------------------------------------------------
// Enqueue
// ---------------------------------------------------------------------------

func TestEnqueue_FillsDefaultsFromConfig(t *testing.T) {
	svc, st, clock := setupService(t)
	ctx := context.Background()

	if err := st.SaveConfig(ctx, queuectl.Config{MaxRetries: 7, BackoffBase: 2.0, BackoffMaxDelay: 60}); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	j, err := svc.Enqueue(ctx, job.Spec{ID: "a", Command: "true"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if j.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7 from config", j.MaxRetries)
	}
	if j.State != job.StatePending || j.Attempts != 0 {
		t.Errorf("new job = state %s attempts %d, want pending/0", j.State, j.Attempts)
	}
	if !j.CreatedAt.Equal(clock.Now()) || !j.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("timestamps not set from clock: %+v", j)
	}
	if j.NextRetryAt != nil {
		t.Errorf("NextRetryAt = %v, want nil", j.NextRetryAt)
	}
}

func TestEnqueue_ExplicitMaxRetriesWins(t *testing.T) {
	svc, _, _ := setupService(t)

	j, err := svc.Enqueue(context.Background(), job.Spec{ID: "a", Command: "true", MaxRetries: intPtr(0)})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if j.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want explicit 0", j.MaxRetries)
	}
}

func TestEnqueue_RejectsInvalidSpec(t *testing.T) {
	svc, _, _ := setupService(t)

	for _, spec := range []job.Spec{
		{Command: "true"},
		{ID: "a"},
		{ID: "a", Command: "true", MaxRetries: intPtr(-1)},
	} {
		if _, err := svc.Enqueue(context.Background(), spec); !errors.Is(err, queuectl.ErrInvalidJob) {
			t.Errorf("Enqueue(%+v) = %v, want ErrInvalidJob", spec, err)
		}
	}
}

func TestEnqueue_DuplicateIDYieldsExactlyOneError(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, job.Spec{ID: "a", Command: "true"}); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if _, err := svc.Enqueue(ctx, job.Spec{ID: "a", Command: "true"}); !errors.Is(err, queuectl.ErrDuplicateJob) {
		t.Fatalf("second Enqueue = %v, want ErrDuplicateJob", err)
	}
}

// ---------------------------------------------------------------------------
// ClaimNext
// ---------------------------------------------------------------------------

func TestClaimNext_NoneWhenEmpty(t *testing.T) {
	svc, _, _ := setupService(t)
	c, err := svc.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if c != nil {
		t.Fatalf("ClaimNext = %+v, want nil", c)
	}
}

func TestClaimNext_OldestFirstThenID(t *testing.T) {
	svc, _, clock := setupService(t)
	ctx := context.Background()

	// "b" and "c" share a creation instant; "z" is older than both.
	if _, err := svc.Enqueue(ctx, job.Spec{ID: "z", Command: "true"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	clock.Advance(time.Second)
	for _, id := range []string{"c", "b"} {
		if _, err := svc.Enqueue(ctx, job.Spec{ID: id, Command: "true"}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	var order []string
	for i := 0; i < 3; i++ {
		c, err := svc.ClaimNext(ctx)
		if err != nil {
			t.Fatalf("ClaimNext: %v", err)
		}
		if c == nil {
			t.Fatal("ClaimNext returned nil with claimable jobs left")
		}
		order = append(order, c.Job.ID)
		if err := svc.MarkSucceeded(ctx, c); err != nil {
			t.Fatalf("MarkSucceeded: %v", err)
		}
	}

	want := []string{"z", "b", "c"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("claim order = %v, want %v", order, want)
		}
	}
}

func TestClaimNext_TransitionsToProcessing(t *testing.T) {
	svc, st, clock := setupService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, job.Spec{ID: "a", Command: "true"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	clock.Advance(time.Second)

	c, err := svc.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	defer c.Release()

	if c.Job.State != job.StateProcessing {
		t.Errorf("claimed state = %s, want processing", c.Job.State)
	}
	if !c.Job.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("UpdatedAt = %v, want %v", c.Job.UpdatedAt, clock.Now())
	}

	stored, err := st.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.State != job.StateProcessing {
		t.Errorf("persisted state = %s, want processing", stored.State)
	}
}

func TestClaimNext_RespectsRetrySchedule(t *testing.T) {
	svc, st, clock := setupService(t)
	ctx := context.Background()

	j, err := svc.Enqueue(ctx, job.Spec{ID: "a", Command: "true"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	future := clock.Now().Add(time.Millisecond)
	j.NextRetryAt = &future
	if err := st.Update(ctx, j); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// One millisecond early: not claimable.
	c, err := svc.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if c != nil {
		t.Fatalf("job claimed %v before its retry time", c.Job.ID)
	}

	// At the boundary it becomes claimable.
	clock.Advance(time.Millisecond)
	c, err = svc.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if c == nil {
		t.Fatal("job not claimable at its retry time")
	}
	c.Release()
}

func TestClaimNext_SkipsLockedJobs(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, job.Spec{ID: "a", Command: "true"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := svc.Enqueue(ctx, job.Spec{ID: "b", Command: "true"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Another worker holds a's lock.
	lock, err := st.TryLock("a")
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	defer lock.Release()

	c, err := svc.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if c == nil || c.Job.ID != "b" {
		t.Fatalf("ClaimNext = %+v, want job b", c)
	}
	c.Release()
}

// ---------------------------------------------------------------------------
// Attempt outcomes
// ---------------------------------------------------------------------------

func TestMarkSucceeded_RecordsCompletion(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, job.Spec{ID: "a", Command: "true"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	c, err := svc.ClaimNext(ctx)
	if err != nil || c == nil {
		t.Fatalf("ClaimNext = %v, %v", c, err)
	}
	if err := svc.MarkSucceeded(ctx, c); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}

	got, err := st.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != job.StateCompleted || got.Attempts != 1 {
		t.Errorf("job = state %s attempts %d, want completed/1", got.State, got.Attempts)
	}
	if got.ErrorMessage != "" || got.NextRetryAt != nil {
		t.Errorf("completion should clear error and retry schedule: %+v", got)
	}

	// The lock is released: it can be re-acquired immediately.
	lock, err := st.TryLock("a")
	if err != nil {
		t.Fatalf("TryLock after MarkSucceeded: %v", err)
	}
	lock.Release()
}

func TestMarkFailed_SchedulesExponentialBackoff(t *testing.T) {
	svc, st, clock := setupService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, job.Spec{ID: "a", Command: "false", MaxRetries: intPtr(5)}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Delay after failure n is base^(n-1) seconds with the default base 2.
	wantDelays := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, wantDelay := range wantDelays {
		c, err := svc.ClaimNext(ctx)
		if err != nil || c == nil {
			t.Fatalf("ClaimNext #%d = %v, %v", i+1, c, err)
		}
		if err := svc.MarkFailed(ctx, c, "exit status 1"); err != nil {
			t.Fatalf("MarkFailed: %v", err)
		}

		got, err := st.Get(ctx, "a")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.State != job.StatePending {
			t.Fatalf("state after failure %d = %s, want pending", i+1, got.State)
		}
		if got.Attempts != i+1 {
			t.Errorf("attempts = %d, want %d", got.Attempts, i+1)
		}
		if got.ErrorMessage != "exit status 1" {
			t.Errorf("ErrorMessage = %q", got.ErrorMessage)
		}
		if got.NextRetryAt == nil {
			t.Fatal("NextRetryAt not set")
		}
		if gotDelay := got.NextRetryAt.Sub(got.UpdatedAt); gotDelay != wantDelay {
			t.Errorf("retry delay after failure %d = %v, want %v", i+1, gotDelay, wantDelay)
		}

		clock.Advance(wantDelay)
	}
}

func TestMarkFailed_CapsDelayAtMax(t *testing.T) {
	svc, st, clock := setupService(t)
	ctx := context.Background()

	if err := st.SaveConfig(ctx, queuectl.Config{MaxRetries: 100, BackoffBase: 2.0, BackoffMaxDelay: 3}); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if _, err := svc.Enqueue(ctx, job.Spec{ID: "a", Command: "false"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	for i := 0; i < 5; i++ {
		c, err := svc.ClaimNext(ctx)
		if err != nil || c == nil {
			t.Fatalf("ClaimNext #%d = %v, %v", i+1, c, err)
		}
		if err := svc.MarkFailed(ctx, c, "exit status 1"); err != nil {
			t.Fatalf("MarkFailed: %v", err)
		}
		clock.Advance(10 * time.Second)
	}

	got, err := st.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// 2^4 = 16s would exceed the 3s cap.
	if delay := got.NextRetryAt.Sub(got.UpdatedAt); delay != 3*time.Second {
		t.Errorf("capped delay = %v, want 3s", delay)
	}
}

func TestMarkFailed_RetiresWhenBudgetExhausted(t *testing.T) {
	svc, st, clock := setupService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, job.Spec{ID: "c", Command: "false", MaxRetries: intPtr(2)}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// First failure: attempts 1 < 2, retried.
	c, err := svc.ClaimNext(ctx)
	if err != nil || c == nil {
		t.Fatalf("ClaimNext = %v, %v", c, err)
	}
	if err := svc.MarkFailed(ctx, c, "exit status 1"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	clock.Advance(time.Second)

	// Second failure: attempts 2 >= 2, retired to DLQ.
	c, err = svc.ClaimNext(ctx)
	if err != nil || c == nil {
		t.Fatalf("ClaimNext = %v, %v", c, err)
	}
	if err := svc.MarkFailed(ctx, c, "exit status 1"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	if _, err := st.Get(ctx, "c"); !errors.Is(err, queuectl.ErrJobNotFound) {
		t.Fatalf("job still in active set: %v", err)
	}
	dlq, err := svc.DLQList(ctx, 0)
	if err != nil {
		t.Fatalf("DLQList: %v", err)
	}
	if len(dlq) != 1 {
		t.Fatalf("DLQ size = %d, want 1", len(dlq))
	}
	dead := dlq[0]
	if dead.State != job.StateDead || dead.Attempts != 2 {
		t.Errorf("dead job = state %s attempts %d, want dead/2", dead.State, dead.Attempts)
	}
	if dead.ErrorMessage == "" {
		t.Error("dead job should retain its error message")
	}
}

func TestMarkFailed_ZeroBudgetRetiresImmediately(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, job.Spec{ID: "a", Command: "false", MaxRetries: intPtr(0)}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	c, err := svc.ClaimNext(ctx)
	if err != nil || c == nil {
		t.Fatalf("ClaimNext = %v, %v", c, err)
	}
	if err := svc.MarkFailed(ctx, c, "exit status 1"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	dlq, err := svc.DLQList(ctx, 0)
	if err != nil {
		t.Fatalf("DLQList: %v", err)
	}
	if len(dlq) != 1 || dlq[0].Attempts != 1 {
		t.Fatalf("DLQ = %+v, want one job with attempts 1", dlq)
	}
}

func TestClaim_ReleaseIsIdempotent(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, job.Spec{ID: "a", Command: "true"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	c, err := svc.ClaimNext(ctx)
	if err != nil || c == nil {
		t.Fatalf("ClaimNext = %v, %v", c, err)
	}
	if err := c.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := c.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

// ---------------------------------------------------------------------------
// DLQ requeue
// ---------------------------------------------------------------------------

func TestDLQRequeue_ResetsJob(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	created, err := svc.Enqueue(ctx, job.Spec{ID: "c", Command: "false", MaxRetries: intPtr(0)})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	c, err := svc.ClaimNext(ctx)
	if err != nil || c == nil {
		t.Fatalf("ClaimNext = %v, %v", c, err)
	}
	if err := svc.MarkFailed(ctx, c, "exit status 1"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	j, err := svc.DLQRequeue(ctx, "c")
	if err != nil {
		t.Fatalf("DLQRequeue: %v", err)
	}
	if j.State != job.StatePending || j.Attempts != 0 {
		t.Errorf("requeued = state %s attempts %d, want pending/0", j.State, j.Attempts)
	}
	if j.NextRetryAt != nil || j.ErrorMessage != "" {
		t.Errorf("requeued retains schedule or error: %+v", j)
	}
	if !j.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt = %v, want original %v", j.CreatedAt, created.CreatedAt)
	}
	if j.MaxRetries != 0 || j.Command != "false" {
		t.Errorf("requeued lost identity fields: %+v", j)
	}

	// The job is claimable again and the DLQ is empty.
	if _, err := st.Get(ctx, "c"); err != nil {
		t.Fatalf("Get after requeue: %v", err)
	}
	dlq, err := svc.DLQList(ctx, 0)
	if err != nil {
		t.Fatalf("DLQList: %v", err)
	}
	if len(dlq) != 0 {
		t.Errorf("DLQ size = %d, want 0", len(dlq))
	}
}

func TestDLQRequeue_NotFound(t *testing.T) {
	svc, _, _ := setupService(t)
	if _, err := svc.DLQRequeue(context.Background(), "missing"); !errors.Is(err, queuectl.ErrJobNotFound) {
		t.Fatalf("DLQRequeue = %v, want ErrJobNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// List / Stats
// ---------------------------------------------------------------------------

func TestList_FilterAliasAndLimit(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := svc.Enqueue(ctx, job.Spec{ID: id, Command: "true", MaxRetries: intPtr(3)}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	// Fail "a" once so it is pending with an error.
	c, err := svc.ClaimNext(ctx)
	if err != nil || c == nil || c.Job.ID != "a" {
		t.Fatalf("ClaimNext = %v, %v", c, err)
	}
	if err := svc.MarkFailed(ctx, c, "exit status 1"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	// "a" now waits out its backoff, so the next claim is "b".
	c, err = svc.ClaimNext(ctx)
	if err != nil || c == nil {
		t.Fatalf("ClaimNext = %v, %v", c, err)
	}
	if err := svc.MarkSucceeded(ctx, c); err != nil {
		t.Fatalf("MarkSucceeded: %v", err)
	}

	all, err := svc.List(ctx, queue.ListOpts{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List(all) = %d jobs, want 3", len(all))
	}

	pending, err := svc.List(ctx, queue.ListOpts{State: job.StatePending})
	if err != nil {
		t.Fatalf("List(pending): %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("List(pending) = %d jobs, want 2", len(pending))
	}

	// "failed" aliases pending jobs with a recorded failure.
	failed, err := svc.List(ctx, queue.ListOpts{State: job.StateFailed})
	if err != nil {
		t.Fatalf("List(failed): %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "a" {
		t.Errorf("List(failed) = %+v, want just job a", failed)
	}

	limited, err := svc.List(ctx, queue.ListOpts{Limit: 2})
	if err != nil {
		t.Fatalf("List(limit): %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(limit 2) = %d jobs", len(limited))
	}

	if _, err := svc.List(ctx, queue.ListOpts{State: "bogus"}); !errors.Is(err, queuectl.ErrInvalidState) {
		t.Errorf("List(bogus) = %v, want ErrInvalidState", err)
	}
}

func TestList_DeadReadsDLQ(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, job.Spec{ID: "a", Command: "false", MaxRetries: intPtr(0)}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	c, err := svc.ClaimNext(ctx)
	if err != nil || c == nil {
		t.Fatalf("ClaimNext = %v, %v", c, err)
	}
	if err := svc.MarkFailed(ctx, c, "exit status 1"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	dead, err := svc.List(ctx, queue.ListOpts{State: job.StateDead})
	if err != nil {
		t.Fatalf("List(dead): %v", err)
	}
	if len(dead) != 1 || dead[0].ID != "a" {
		t.Errorf("List(dead) = %+v, want job a", dead)
	}
}

func TestStats_CountsPerStateAndDLQ(t *testing.T) {
	svc, st, clock := setupService(t)
	ctx := context.Background()

	now := clock.Now()
	add := func(id string, state job.State, errMsg string) {
		t.Helper()
		err := st.Add(ctx, &job.Job{
			ID: id, Command: "true", State: state, MaxRetries: 3,
			CreatedAt: now, UpdatedAt: now, ErrorMessage: errMsg,
		})
		if err != nil {
			t.Fatalf("Add(%s): %v", id, err)
		}
	}
	add("p1", job.StatePending, "")
	add("p2", job.StateProcessing, "")
	add("ok", job.StateCompleted, "")
	add("bad", job.StatePending, "exit status 1")
	add("gone", job.StatePending, "")
	if err := st.MoveToDLQ(ctx, &job.Job{ID: "gone", Attempts: 3}); err != nil {
		t.Fatalf("MoveToDLQ: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := queue.Stats{Pending: 2, Processing: 1, Completed: 1, Failed: 1, Dead: 1, Total: 5}
	if stats != want {
		t.Errorf("Stats = %+v, want %+v", stats, want)
	}
}

// ---------------------------------------------------------------------------
// Crash recovery
// ---------------------------------------------------------------------------

func TestRecoverStale_TreatsFreeProcessingJobAsFailure(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, job.Spec{ID: "d", Command: "sleep 60", MaxRetries: intPtr(3)}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Simulate a crash: the claim transitioned the job to processing,
	// then the worker died and the OS dropped its lock.
	c, err := svc.ClaimNext(ctx)
	if err != nil || c == nil {
		t.Fatalf("ClaimNext = %v, %v", c, err)
	}
	if err := c.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	n, err := svc.RecoverStale(ctx)
	if err != nil {
		t.Fatalf("RecoverStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("recovered = %d, want 1", n)
	}

	got, err := st.Get(ctx, "d")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != job.StatePending || got.Attempts != 1 {
		t.Errorf("recovered job = state %s attempts %d, want pending/1", got.State, got.Attempts)
	}
	if got.ErrorMessage != queue.CrashedErrorMessage {
		t.Errorf("ErrorMessage = %q, want %q", got.ErrorMessage, queue.CrashedErrorMessage)
	}
	if got.NextRetryAt == nil || got.NextRetryAt.Sub(got.UpdatedAt) != time.Second {
		t.Errorf("recovered job should back off 1s, got %+v", got)
	}
}

func TestRecoverStale_ZeroBudgetGoesToDLQ(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, job.Spec{ID: "d", Command: "sleep 60", MaxRetries: intPtr(0)}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	c, err := svc.ClaimNext(ctx)
	if err != nil || c == nil {
		t.Fatalf("ClaimNext = %v, %v", c, err)
	}
	if err := c.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if _, err := svc.RecoverStale(ctx); err != nil {
		t.Fatalf("RecoverStale: %v", err)
	}
	dlq, err := svc.DLQList(ctx, 0)
	if err != nil {
		t.Fatalf("DLQList: %v", err)
	}
	if len(dlq) != 1 || dlq[0].Attempts != 1 {
		t.Fatalf("DLQ = %+v, want one job with attempts 1", dlq)
	}
}

func TestRecoverStale_SkipsHeldJobs(t *testing.T) {
	svc, st, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, job.Spec{ID: "d", Command: "sleep 60"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	c, err := svc.ClaimNext(ctx)
	if err != nil || c == nil {
		t.Fatalf("ClaimNext = %v, %v", c, err)
	}
	defer c.Release()

	n, err := svc.RecoverStale(ctx)
	if err != nil {
		t.Fatalf("RecoverStale: %v", err)
	}
	if n != 0 {
		t.Fatalf("recovered = %d, want 0 (lock is held)", n)
	}
	got, err := st.Get(ctx, "d")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != job.StateProcessing {
		t.Errorf("held job state = %s, want processing", got.State)
	}
}
