package logstore

import (
	"github.com/cockroachdb/errors"
)

// errno values as used by the C logging API this store mirrors.
const (
	errnoIO    = 5
	errnoNoMem = 12
	errnoNoDev = 19
	errnoInval = 22
)

var (
	// ErrNotReady is returned while the store is uninitialized or after a
	// fatal write failure disabled it. Only Init or EraseAndReinit clear it.
	ErrNotReady = errors.New("logstore: not ready")
	// ErrOutOfMemory means rotation could not reclaim a sector.
	ErrOutOfMemory = errors.New("logstore: out of memory")
	// ErrIO marks flash read and write failures.
	ErrIO = errors.New("logstore: i/o error")
	// ErrInvalidArgument marks malformed caller input.
	ErrInvalidArgument = errors.New("logstore: invalid argument")
)

// kindError tags a cause with one of the sentinels above. Is matches the
// sentinel and Unwrap keeps the cause reachable, so both the stdlib and
// cockroachdb errors.Is see through it.
type kindError struct {
	cause error
	kind  error
}

func (e *kindError) Error() string { return e.cause.Error() }

func (e *kindError) Unwrap() error { return e.cause }

func (e *kindError) Is(target error) bool { return target == e.kind }

func withKind(err, kind error) error {
	return &kindError{cause: err, kind: kind}
}

func markIO(err error, format string, args ...interface{}) error {
	return withKind(errors.Wrapf(err, format, args...), ErrIO)
}

func invalid(err error, format string, args ...interface{}) error {
	return withKind(errors.Wrapf(err, format, args...), ErrInvalidArgument)
}

// Errno maps err to the negative errno convention of C log backends.
// A nil error maps to 0.
func Errno(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotReady):
		return -errnoNoDev
	case errors.Is(err, ErrOutOfMemory):
		return -errnoNoMem
	case errors.Is(err, ErrInvalidArgument):
		return -errnoInval
	default:
		return -errnoIO
	}
}
