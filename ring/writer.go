// Package ring implements the write-side and read-side frame protocol
// engine of spec.md §4.3–4.4: space accounting, wrap-marker placement and
// reclamation, strict sequence numbers, and the symmetric
// one-semaphore-signal-per-frame discipline.
package ring

import (
	"time"

	"go.uber.org/zap"

	"github.com/modelingevolution/zerobuffer/errs"
	"github.com/modelingevolution/zerobuffer/frame"
	"github.com/modelingevolution/zerobuffer/internal/metrics"
	"github.com/modelingevolution/zerobuffer/oieb"
	"github.com/modelingevolution/zerobuffer/platform"
)

// Writer is the write-side of a ring: it reserves space, places frames
// and wrap markers, and blocks on back-pressure.
type Writer struct {
	payload []byte
	o       *oieb.View
	semPost platform.Semaphore // sem-w: posted once per real frame written
	semWait platform.Semaphore // sem-r: waited on for reclaimed space
	timeout time.Duration
	alive   func(pid int) bool
	log     *zap.Logger
	met     *metrics.Set

	nextSeq  uint64
	reserved bool
}

// NewWriter builds a Writer over payload (the ring's payload-section
// bytes), o (the shared OIEB view), the two named semaphores, a default
// wait timeout, and a process-liveness probe used after a timeout to
// distinguish "still waiting" from "peer-dead". log and met may be nil;
// a nil log suppresses per-frame/wrap DEBUG events and a nil met is a
// no-op counter set.
func NewWriter(payload []byte, o *oieb.View, semPost, semWait platform.Semaphore, timeout time.Duration, alive func(pid int) bool, log *zap.Logger, met *metrics.Set) *Writer {
	return &Writer{payload: payload, o: o, semPost: semPost, semWait: semWait, timeout: timeout, alive: alive, log: log, met: met, nextSeq: 1}
}

// Reservation is a zero-copy write-side handle into the ring returned by
// Writer.Reserve; Commit publishes it to the reader.
type Reservation struct {
	w        *Writer
	pos      uint64
	n        uint64
	seq      uint64
	freeSnap uint64
	sizeSnap uint64
	done     bool
}

// Sequence returns the sequence number this reservation will carry once
// committed.
func (r *Reservation) Sequence() uint64 { return r.seq }

// Bytes returns the writable view into the ring where the payload must
// be copied before Commit. It is not observable by the reader until
// Commit runs.
func (r *Reservation) Bytes() []byte {
	start := r.pos + frame.HeaderSize
	return r.w.payload[start : start+r.n]
}

// Commit publishes the reservation: it writes the frame header, advances
// the OIEB write position and free-byte count, and posts sem-w exactly
// once (spec.md §4.3 steps 4–7).
func (r *Reservation) Commit() error {
	if r.done {
		return errs.New(errs.KindInvalidArgument, "reservation already committed")
	}
	r.done = true
	r.w.reserved = false

	frame.Encode(r.w.payload[r.pos:], frame.Header{PayloadSize: r.n, Sequence: r.seq})

	total := frame.HeaderSize + r.n
	newWritePos := (r.pos + total) % r.sizeSnap
	newFree := r.freeSnap - total
	r.w.o.WriteAdvance(newWritePos, newFree, true)
	r.w.nextSeq = r.seq + 1

	if r.w.log != nil {
		r.w.log.Debug("frame written", zap.Uint64("sequence", r.seq), zap.Uint64("payload_size", r.n))
	}

	return r.w.semPost.Post()
}

// Reserve computes the write position for an N-byte frame, placing a
// wrap marker first if the tail of the ring cannot hold it, and blocking
// on back-pressure until there is room. The caller must Commit the
// returned Reservation; abandoning one is not supported (spec.md §4.3
// zero-copy notes).
func (w *Writer) Reserve(n uint64) (*Reservation, error) {
	if n == 0 {
		return nil, errs.New(errs.KindInvalidFrameSize, "zero-length frames are not permitted")
	}
	if w.reserved {
		return nil, errs.New(errs.KindInvalidArgument, "a reservation is already outstanding")
	}

	size := w.o.PayloadSize()
	total := frame.HeaderSize + n
	if total > size {
		return nil, errs.New(errs.KindFrameTooLarge, "frame exceeds ring capacity")
	}

	deadline := time.Now().Add(w.timeout)
	for {
		s := w.o.Load()
		cf := continuousFreeBytes(s.PayloadWritePos, s.PayloadReadPos, s.PayloadSize, s.PayloadFreeBytes)

		switch {
		case s.PayloadFreeBytes >= total && cf >= total:
			w.reserved = true
			return &Reservation{
				w:        w,
				pos:      s.PayloadWritePos,
				n:        n,
				seq:      w.nextSeq,
				freeSnap: s.PayloadFreeBytes,
				sizeSnap: s.PayloadSize,
			}, nil

		case s.PayloadFreeBytes >= total && cf < total && cf >= frame.HeaderSize:
			frame.Encode(w.payload[s.PayloadWritePos:], frame.WrapMarker)
			wasted := s.PayloadSize - s.PayloadWritePos
			w.o.WriteAdvance(0, s.PayloadFreeBytes-wasted, false)
			if w.log != nil {
				w.log.Debug("wrap marker placed", zap.Uint64("write_pos", s.PayloadWritePos), zap.Uint64("wasted_bytes", wasted))
			}
			w.met.IncWrapMarkers()
			continue

		default:
			remaining := time.Until(deadline)
			if remaining <= 0 {
				remaining = 0
			}
			res, err := w.semWait.Wait(remaining)
			if err != nil {
				return nil, errs.Newf(errs.KindTimeout, err, "wait on sem-r")
			}
			if res == platform.TimedOut {
				readerPID := w.o.ReaderPID()
				if readerPID != 0 && !w.alive(int(readerPID)) {
					return nil, errs.New(errs.KindReaderDead, "reader process no longer exists")
				}
				if time.Now().After(deadline) {
					return nil, errs.New(errs.KindTimeout, "timed out waiting for free space")
				}
			}
		}
	}
}

// WriteFrame copies payload into a fresh reservation and commits it in
// one call, for callers that don't need the zero-copy reservation API.
func (w *Writer) WriteFrame(payload []byte) error {
	resv, err := w.Reserve(uint64(len(payload)))
	if err != nil {
		return err
	}
	copy(resv.Bytes(), payload)
	return resv.Commit()
}

// NextSequence returns the sequence number the next real frame will
// receive.
func (w *Writer) NextSequence() uint64 { return w.nextSeq }
