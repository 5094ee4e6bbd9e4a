// Package errs defines the zerobuffer error taxonomy (spec.md §7): a
// Kind enum and a single *Error type carrying kind, message, and the
// optional expected/actual values used by sequence mismatches.
// It is split out from the root package so that the lower-level packages
// (ring, internal/lockfile, duplex) can return typed errors without
// importing the root package and creating an import cycle.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a zerobuffer error so callers can branch on it without
// parsing the message.
type Kind int

const (
	// KindUnknown is the zero value and should never be returned.
	KindUnknown Kind = iota
	KindNotFound
	KindAlreadyExists
	KindWriterAlreadyConnected
	KindInvalidOIEB
	KindInvalidFrameSize
	KindFrameTooLarge
	KindSequenceError
	KindWriterDead
	KindReaderDead
	KindBufferFull
	KindMetadataAlreadyWritten
	KindMetadataTooLarge
	KindMetadataNotSupported
	KindTimeout
	KindResourceExhausted
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindAlreadyExists:
		return "already-exists"
	case KindWriterAlreadyConnected:
		return "writer-already-connected"
	case KindInvalidOIEB:
		return "invalid-oieb"
	case KindInvalidFrameSize:
		return "invalid-frame-size"
	case KindFrameTooLarge:
		return "frame-too-large"
	case KindSequenceError:
		return "sequence-error"
	case KindWriterDead:
		return "writer-dead"
	case KindReaderDead:
		return "reader-dead"
	case KindBufferFull:
		return "buffer-full"
	case KindMetadataAlreadyWritten:
		return "metadata-already-written"
	case KindMetadataTooLarge:
		return "metadata-too-large"
	case KindMetadataNotSupported:
		return "metadata-not-supported"
	case KindTimeout:
		return "timeout"
	case KindResourceExhausted:
		return "system-resource-exhausted"
	case KindInvalidArgument:
		return "invalid-argument"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every zerobuffer operation that can
// fail. Expected/Actual are populated only for sequence mismatches (see
// NewSequenceError); size errors and every other kind leave them zero.
type Error struct {
	Kind     Kind
	Message  string
	Expected uint64
	Actual   uint64
	HasValue bool
	Err      error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.HasValue {
		return fmt.Sprintf("zerobuffer: %s: %s (expected=%d actual=%d)", e.Kind, e.Message, e.Expected, e.Actual)
	}
	if e.Err != nil {
		return fmt.Sprintf("zerobuffer: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("zerobuffer: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so that
// errors.Is(err, errs.New(kind, "")) matches any error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error of the given kind with a plain message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf builds an *Error of the given kind, wrapping cause and formatting
// the message.
func Newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// NewSequenceError builds the *Error a reader raises when a frame's
// sequence number does not match the expected next value (spec.md §4.4
// step 5, §7 sequence-error).
func NewSequenceError(expected, actual uint64) *Error {
	return &Error{
		Kind:     KindSequenceError,
		Message:  "sequence number mismatch",
		Expected: expected,
		Actual:   actual,
		HasValue: true,
	}
}

// KindOf returns the Kind of err if it is (or wraps) a *zerobuffer.Error,
// and KindUnknown otherwise.
func KindOf(err error) Kind {
	var ze *Error
	if errors.As(err, &ze) {
		return ze.Kind
	}
	return KindUnknown
}
