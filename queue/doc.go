// Package queue implements the job state machine over a store.
//
// The [Service] is the only writer of job state: it enqueues pending
// jobs, claims the next eligible one under its per-job lock, resolves
// attempt outcomes into completion, a scheduled retry, or retirement to
// the dead letter queue, and recovers jobs abandoned by crashed
// workers.
//
// State machine:
//
//	enqueue → pending → processing → completed
//	                 ↖      │
//	        retry     \     │ failure (attempts++)
//	   (next_retry_at) \    ▼
//	        pending ←── attempts < max_retries
//	           dead ←── attempts ≥ max_retries   (DLQ; dlq requeue → pending)
//
// A failed attempt is never persisted as a "failed" state: it resolves
// immediately into pending or dead.
package queue
