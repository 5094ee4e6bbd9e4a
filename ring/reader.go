package ring

import (
	"time"

	"github.com/modelingevolution/zerobuffer/errs"
	"github.com/modelingevolution/zerobuffer/frame"
	"github.com/modelingevolution/zerobuffer/oieb"
	"github.com/modelingevolution/zerobuffer/platform"
)

// Reader is the read-side of a ring: it consumes frames in strict
// sequence order, skipping wrap markers without signalling, and returns
// zero-copy views the caller must Release.
type Reader struct {
	payload []byte
	o       *oieb.View
	semPost platform.Semaphore // sem-r: posted once per frame released
	semWait platform.Semaphore // sem-w: waited on for newly written frames
	timeout time.Duration
	alive   func(pid int) bool

	expectedSeq uint64
	outstanding *FrameView
}

// NewReader builds a Reader over payload (the ring's payload-section
// bytes), o (the shared OIEB view), the two named semaphores, a default
// wait timeout, and a process-liveness probe.
func NewReader(payload []byte, o *oieb.View, semPost, semWait platform.Semaphore, timeout time.Duration, alive func(pid int) bool) *Reader {
	return &Reader{payload: payload, o: o, semPost: semPost, semWait: semWait, timeout: timeout, alive: alive, expectedSeq: 1}
}

// FrameView is a borrowed, zero-copy view of one payload in the ring.
// Exactly one FrameView may be outstanding per Reader at a time; Release
// must be called exactly once before the next Read.
type FrameView struct {
	r        *Reader
	pos      uint64
	n        uint64
	seq      uint64
	released bool
}

// Bytes returns the frame's payload. The slice is only valid until
// Release is called.
func (f *FrameView) Bytes() []byte {
	start := f.pos + frame.HeaderSize
	return f.r.payload[start : start+f.n]
}

// Sequence returns the frame's sequence number.
func (f *FrameView) Sequence() uint64 { return f.seq }

// Release returns the frame's space to the writer: it advances the OIEB
// read position and free-byte count and posts sem-r exactly once.
// Releasing the same FrameView twice panics (spec.md §9 design notes).
func (f *FrameView) Release() error {
	if f.released {
		panic("zerobuffer: frame released twice")
	}
	f.released = true
	f.r.outstanding = nil

	free := f.r.o.PayloadFreeBytes()
	size := f.r.o.PayloadSize()
	total := frame.HeaderSize + f.n
	newReadPos := (f.pos + total) % size
	f.r.o.ReadAdvance(newReadPos, free+total, true)
	f.r.expectedSeq++

	return f.r.semPost.Post()
}

// Read blocks until a frame is available, a wrap marker is transparently
// skipped, and returns a FrameView the caller must Release before the
// next call to Read (spec.md §4.4).
func (r *Reader) Read() (*FrameView, error) {
	if r.outstanding != nil {
		return nil, errs.New(errs.KindInvalidArgument, "previous frame was not released")
	}

	deadline := time.Now().Add(r.timeout)
	for {
		s := r.o.Load()
		if s.PayloadWrittenCount > s.PayloadReadCount {
			pos := s.PayloadReadPos
			hdr := frame.Decode(r.payload[pos : pos+frame.HeaderSize])

			if hdr.IsWrapMarker() {
				wasted := s.PayloadSize - pos
				r.o.ReadAdvance(0, s.PayloadFreeBytes+wasted, false)
				continue
			}

			if hdr.PayloadSize == 0 || frame.HeaderSize+hdr.PayloadSize > s.PayloadSize {
				return nil, errs.New(errs.KindInvalidFrameSize, "frame header describes an impossible payload size")
			}
			if hdr.Sequence != r.expectedSeq {
				return nil, errs.NewSequenceError(r.expectedSeq, hdr.Sequence)
			}

			view := &FrameView{r: r, pos: pos, n: hdr.PayloadSize, seq: hdr.Sequence}
			r.outstanding = view
			return view, nil
		}

		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		res, err := r.semWait.Wait(remaining)
		if err != nil {
			return nil, errs.Newf(errs.KindTimeout, err, "wait on sem-w")
		}
		if res == platform.TimedOut {
			writerPID := r.o.WriterPID()
			if writerPID != 0 && !r.alive(int(writerPID)) {
				return nil, errs.New(errs.KindWriterDead, "writer process no longer exists")
			}
			if time.Now().After(deadline) {
				return nil, errs.New(errs.KindTimeout, "timed out waiting for a frame")
			}
		}
	}
}

// ExpectedSequence returns the sequence number the next frame must carry.
func (r *Reader) ExpectedSequence() uint64 { return r.expectedSeq }
