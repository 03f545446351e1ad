// Package store defines the persistence contract for the job queue.
//
// The [Store] interface covers the active set, the dead letter queue,
// the configuration record, and per-job advisory locks. A backend
// implements all of it.
//
// # Available Backends
//
//   - store/fs — JSON files under a root directory, the production
//     backend; coordination across processes via advisory file locks
//   - store/memory — in-memory store for unit tests
//
// # Locking discipline
//
// Callers must hold a job's lock (from TryLock) across any
// read-modify-write of that job. Structural mutations of the
// collections are serialized inside the backend, so concurrent Add or
// MoveToDLQ calls from separate processes cannot lose writes.
package store
