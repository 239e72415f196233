// Package shutdown provides the cooperative stop signal the recognition loop
// polls between segments. The signal is set at most once per process and is
// never cleared; an in-flight job that observes it fails with a
// distinguishable cancellation error instead of being killed mid-write.
package shutdown

import (
	"errors"
	"sync/atomic"
)

// ErrRequested is returned by Check once shutdown has been requested. It is
// the marker the pipeline uses to classify the failure as a cancellation
// rather than an engine error.
var ErrRequested = errors.New("shutdown requested")

// Signal is a process-wide set-once stop flag. The zero value is ready to
// use.
type Signal struct {
	requested atomic.Bool
}

// Request sets the flag. It is idempotent and safe to call from a signal
// handler goroutine.
func (s *Signal) Request() {
	if s != nil {
		s.requested.Store(true)
	}
}

// Requested reports whether shutdown has been requested.
func (s *Signal) Requested() bool {
	return s != nil && s.requested.Load()
}

// Check returns ErrRequested once the flag is set, nil before. Callers abort
// their current unit of work on a non-nil return.
func (s *Signal) Check() error {
	if s.Requested() {
		return ErrRequested
	}
	return nil
}
