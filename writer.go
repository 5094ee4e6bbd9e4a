package zerobuffer

import (
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/modelingevolution/zerobuffer/errs"
	"github.com/modelingevolution/zerobuffer/internal/metrics"
	"github.com/modelingevolution/zerobuffer/oieb"
	"github.com/modelingevolution/zerobuffer/platform"
	"github.com/modelingevolution/zerobuffer/ring"
)

// Writer attaches to an existing buffer, enforcing single-writer,
// writing metadata once, writing frames, and detecting reader death
// (spec.md §4.6).
type Writer struct {
	name    string
	plat    platform.Platform
	shm     platform.SharedMemory
	o       *oieb.View
	meta    []byte
	payload []byte
	semW    platform.Semaphore
	semR    platform.Semaphore
	ring    *ring.Writer
	log     *zap.Logger
	met     *metrics.Set
	closed  bool
}

// NewWriter attaches to an existing buffer named name. It fails with
// kind NotFound if the buffer does not exist, kind InvalidOIEB if the
// header fails validation, and kind WriterAlreadyConnected if a live
// writer already holds it.
func NewWriter(name string, opts Options) (*Writer, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	p := opts.Platform

	shm, err := p.OpenOrCreateSHM(shmName(name), 0, false)
	if err != nil {
		return nil, errs.Newf(errs.KindNotFound, err, "attach to buffer %q", name)
	}

	region := shm.Bytes()
	ov, err := oieb.New(region)
	if err != nil {
		shm.Close()
		return nil, errs.Newf(errs.KindInvalidOIEB, err, "map oieb")
	}
	if err := oieb.Validate(ov, ov.MetadataSize(), ov.PayloadSize()); err != nil {
		shm.Close()
		return nil, errs.Newf(errs.KindInvalidOIEB, err, "validate oieb of %q", name)
	}
	if align64(oieb.Size)+ov.MetadataSize()+ov.PayloadSize() != uint64(len(region)) {
		shm.Close()
		return nil, errs.New(errs.KindInvalidOIEB, "oieb metadata_size and payload_size do not match the mapped region")
	}

	priorWriterPID := ov.WriterPID()
	if priorWriterPID != 0 && p.ProcessExists(int(priorWriterPID)) {
		shm.Close()
		return nil, errs.New(errs.KindWriterAlreadyConnected, "buffer already has a live writer")
	}
	// A second writer may have raced in between the check above and this
	// store; CAS on the snapshot we just checked ensures only one of them
	// wins the claim, and the loser fails instead of silently overwriting.
	if !ov.CompareAndSwapWriterPID(priorWriterPID, p.CurrentPID()) {
		shm.Close()
		return nil, errs.New(errs.KindWriterAlreadyConnected, "buffer already has a live writer")
	}

	metaStart := align64(oieb.Size)
	metaAligned := ov.MetadataSize()
	payloadAligned := ov.PayloadSize()
	meta := region[metaStart : metaStart+metaAligned]
	payload := region[metaStart+metaAligned : metaStart+metaAligned+payloadAligned]

	semW, err := p.SemOpen(semWriteName(name))
	if err != nil {
		ov.SetWriterPID(0)
		shm.Close()
		return nil, errs.Newf(errs.KindNotFound, err, "open sem-w")
	}
	semR, err := p.SemOpen(semReadName(name))
	if err != nil {
		semW.Close()
		ov.SetWriterPID(0)
		shm.Close()
		return nil, errs.Newf(errs.KindNotFound, err, "open sem-r")
	}

	w := &Writer{
		name: name, plat: p, shm: shm, o: ov,
		meta: meta, payload: payload, semW: semW, semR: semR,
		log: opts.Logger, met: opts.Metrics,
	}
	w.ring = ring.NewWriter(payload, ov, semW, semR, opts.Timeout, p.ProcessExists, opts.Logger, opts.Metrics)

	w.log.Info("writer attached", zap.String("name", name))
	return w, nil
}

// SetMetadata writes the buffer's metadata block exactly once: an
// 8-byte length prefix followed by bytes. It fails if metadata was
// already written, if the buffer has no metadata section, or if the
// payload does not fit.
func (w *Writer) SetMetadata(data []byte) error {
	if w.o.MetadataWrittenBytes() > 0 {
		return errs.New(errs.KindMetadataAlreadyWritten, "metadata already written")
	}
	if w.o.MetadataSize() == 0 {
		return errs.New(errs.KindMetadataNotSupported, "buffer has no metadata section")
	}
	need := uint64(len(data)) + 8
	if need > w.o.MetadataSize() {
		return errs.New(errs.KindMetadataTooLarge, "metadata exceeds metadata_size")
	}

	binary.LittleEndian.PutUint64(w.meta[:8], uint64(len(data)))
	copy(w.meta[8:], data)
	w.o.StoreMetadataWritten(need, w.o.MetadataSize()-need)
	return nil
}

// WriteFrame writes payload as a single frame, blocking on
// back-pressure up to the configured timeout.
func (w *Writer) WriteFrame(payload []byte) error {
	err := w.ring.WriteFrame(payload)
	w.recordWrite(err)
	return err
}

// Reserve returns a zero-copy Reservation for an N-byte frame. The
// caller must call Commit on it.
func (w *Writer) Reserve(n uint64) (*Reservation, error) {
	r, err := w.ring.Reserve(n)
	if err != nil {
		w.recordWrite(err)
		return nil, err
	}
	return &Reservation{r: r, writer: w}, nil
}

func (w *Writer) recordWrite(err error) {
	if err != nil {
		if errs.KindOf(err) == errs.KindReaderDead {
			w.log.Warn("reader death detected", zap.String("name", w.name))
			w.met.RecordPeerDeath("writer")
		}
		return
	}
	w.met.IncFramesWritten()
	w.met.SetBytesFree(w.o.PayloadFreeBytes())
}

// IsReaderConnected reports whether a live reader currently owns this
// buffer.
func (w *Writer) IsReaderConnected() bool {
	pid := w.o.ReaderPID()
	return pid != 0 && w.plat.ProcessExists(int(pid))
}

// Name returns the buffer name this Writer is attached to.
func (w *Writer) Name() string { return w.name }

// Close clears writer_pid with release ordering and releases this
// process's semaphore and shared-memory handles. It does not unlink
// system-wide resources; the reader owns their lifetime (spec.md §4.6
// Close).
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.o.SetWriterPID(0)

	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	record(w.semW.Close())
	record(w.semR.Close())
	record(w.shm.Close())

	w.log.Info("writer closed", zap.String("name", w.name))
	return first
}

// Reservation is a zero-copy write-side handle returned by
// Writer.Reserve. Commit publishes it; abandoning one without
// committing is not supported.
type Reservation struct {
	r      *ring.Reservation
	writer *Writer
}

// Bytes returns the writable payload view. It is not observable by the
// reader until Commit.
func (r *Reservation) Bytes() []byte { return r.r.Bytes() }

// Sequence returns the sequence number this reservation will carry once
// committed.
func (r *Reservation) Sequence() uint64 { return r.r.Sequence() }

// Commit publishes the reservation to the reader.
func (r *Reservation) Commit() error {
	err := r.r.Commit()
	r.writer.recordWrite(err)
	return err
}
