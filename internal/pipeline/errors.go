package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a processing failure. The kind becomes the label prefix
// stored on the job record, "<Kind>: <message>", so API clients can tell a
// fetch problem from an engine problem without parsing prose.
type Kind string

const (
	KindFetchFailed       Kind = "FetchFailed"
	KindRecognitionFailed Kind = "RecognitionFailed"
	KindCancelled         Kind = "Cancelled"
	KindNotFound          Kind = "NotFound"
	KindCleanupFailed     Kind = "CleanupFailed"
)

// Error wraps a processing failure with its kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fail wraps err under the given kind.
func Fail(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Failf builds a kinded error from a format string.
func Failf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from an error chain, defaulting to
// RecognitionFailed for unclassified errors.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindRecognitionFailed
}
