// Package queuectl provides a durable, single-host background job queue
// coordinated entirely through the file system.
//
// Jobs are shell commands submitted through the queuectl CLI. One or more
// worker processes claim jobs with per-job advisory file locks, execute
// them with a timeout, and record outcomes. Failed jobs are retried with
// exponential backoff until their attempt budget is exhausted, then moved
// to a dead letter queue from which an operator may requeue them.
//
// # Architecture
//
// Each subsystem lives in its own package: job defines the entity and its
// lifecycle states, store defines the persistence contract (with a
// filesystem backend in store/fs and an in-memory backend in store/memory
// for tests), backoff computes retry delays, queue enforces the state
// machine, and worker runs the supervised poll loops.
//
// All state lives under a root directory (default ./.queuectl): jobs.json
// for the active set, dlq.json for the dead letter queue, config.json for
// settings, and locks/ for advisory lock files. Writes are atomic
// (temp file + rename), so concurrent readers observe either the old or
// the new contents, never a torn file.
package queuectl
