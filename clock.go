package queuectl

import "time"

// Clock abstracts the source of wall time so tests can advance it
// deterministically. All instants are UTC.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the real UTC wall clock.
func SystemClock() Clock { return systemClock{} }
