package source

import (
	"errors"
	"fmt"
)

// ErrUnauthorized marks a 401 from a token-protected feed. The caller
// invalidates its cached token and retries once with a fresh one.
var ErrUnauthorized = errors.New("unauthorized")

// ErrorKind classifies a source failure.
type ErrorKind int

const (
	// Transient failures (5xx, 429, timeouts) may be retried with
	// bounded backoff.
	Transient ErrorKind = iota
	// Permanent failures (404, unlocatable response envelope) are
	// recorded as a partial-source failure without retrying.
	Permanent
)

func (k ErrorKind) String() string {
	if k == Permanent {
		return "permanent"
	}
	return "transient"
}

// SourceError reports a failed fetch of one feed.
type SourceError struct {
	Source string
	Kind   ErrorKind
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s failure: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a transient source failure.
func IsTransient(err error) bool {
	var se *SourceError
	return errors.As(err, &se) && se.Kind == Transient
}
