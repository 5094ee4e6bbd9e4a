// Package zerobuffer implements a single-producer/single-consumer zero-copy
// IPC primitive over a shared memory region and two counting semaphores: a
// reader creates and owns the buffer, a writer attaches to it, and frames
// flow reader-ward through a lock-free ring protected by a 128-byte status
// header and two named semaphores.
package zerobuffer

import "github.com/modelingevolution/zerobuffer/errs"

// Kind classifies a zerobuffer error so callers can branch on it without
// parsing the message. See the Kind* constants.
type Kind = errs.Kind

// Error is the error type returned by every zerobuffer operation that can
// fail.
type Error = errs.Error

const (
	KindUnknown                = errs.KindUnknown
	KindNotFound                = errs.KindNotFound
	KindAlreadyExists           = errs.KindAlreadyExists
	KindWriterAlreadyConnected  = errs.KindWriterAlreadyConnected
	KindInvalidOIEB             = errs.KindInvalidOIEB
	KindInvalidFrameSize        = errs.KindInvalidFrameSize
	KindFrameTooLarge           = errs.KindFrameTooLarge
	KindSequenceError           = errs.KindSequenceError
	KindWriterDead              = errs.KindWriterDead
	KindReaderDead              = errs.KindReaderDead
	KindBufferFull              = errs.KindBufferFull
	KindMetadataAlreadyWritten  = errs.KindMetadataAlreadyWritten
	KindMetadataTooLarge        = errs.KindMetadataTooLarge
	KindMetadataNotSupported    = errs.KindMetadataNotSupported
	KindTimeout                 = errs.KindTimeout
	KindResourceExhausted       = errs.KindResourceExhausted
	KindInvalidArgument         = errs.KindInvalidArgument
)

// KindOf returns the Kind of err if it is (or wraps) a *zerobuffer.Error,
// and KindUnknown otherwise.
func KindOf(err error) Kind { return errs.KindOf(err) }
