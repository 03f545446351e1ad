// Package id mints TypeID-based worker identifiers.
//
// Job IDs are caller-supplied and validated at the queue boundary; only
// workers need minted identity. Worker IDs are K-sortable (UUIDv7-based),
// globally unique, and URL-safe in the format "wkr_suffix".
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// PrefixWorker is the TypeID prefix for worker identifiers.
const PrefixWorker = "wkr"

// WorkerID identifies a single worker loop. It appears in log output so
// interleaved attempts from concurrent workers can be told apart.
type WorkerID struct {
	inner typeid.TypeID
	valid bool
}

// NewWorkerID generates a new globally unique worker ID.
func NewWorkerID() WorkerID {
	tid, err := typeid.Generate(PrefixWorker)
	if err != nil {
		panic(fmt.Sprintf("id: generate worker id: %v", err))
	}
	return WorkerID{inner: tid, valid: true}
}

// ParseWorkerID parses a worker ID string and validates the "wkr" prefix.
func ParseWorkerID(s string) (WorkerID, error) {
	tid, err := typeid.Parse(s)
	if err != nil {
		return WorkerID{}, fmt.Errorf("id: parse %q: %w", s, err)
	}
	if tid.Prefix() != PrefixWorker {
		return WorkerID{}, fmt.Errorf("id: expected prefix %q, got %q", PrefixWorker, tid.Prefix())
	}
	return WorkerID{inner: tid, valid: true}, nil
}

// String returns the canonical "wkr_suffix" form, or "" for the zero value.
func (w WorkerID) String() string {
	if !w.valid {
		return ""
	}
	return w.inner.String()
}

// IsZero reports whether the ID is the zero value.
func (w WorkerID) IsZero() bool { return !w.valid }
