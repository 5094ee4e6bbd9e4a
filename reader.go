package zerobuffer

import (
	"encoding/binary"
	"time"

	"go.uber.org/zap"

	"github.com/modelingevolution/zerobuffer/errs"
	"github.com/modelingevolution/zerobuffer/internal/lockfile"
	"github.com/modelingevolution/zerobuffer/internal/metrics"
	"github.com/modelingevolution/zerobuffer/internal/obslog"
	"github.com/modelingevolution/zerobuffer/oieb"
	"github.com/modelingevolution/zerobuffer/platform"
	"github.com/modelingevolution/zerobuffer/ring"
)

// DefaultTimeout is the wait timeout spec.md §4.3/§4.4 apply when a
// caller does not configure one explicitly.
const DefaultTimeout = 5 * time.Second

// Options configures a Reader or Writer. The zero value is filled in
// with defaults by NewReader/NewWriter: a 5 second timeout, a no-op
// logger, no metrics, and the host's Platform backend.
type Options struct {
	Timeout  time.Duration
	Logger   *zap.Logger
	Metrics  *metrics.Set
	Platform platform.Platform
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = obslog.Nop()
	}
	if o.Platform == nil {
		o.Platform = platform.New()
	}
	return o
}

// Reader owns the shared region for a buffer name: it creates the OIEB,
// the metadata block and the payload ring, consumes frames, and detects
// writer death (spec.md §4.5).
type Reader struct {
	name    string
	plat    platform.Platform
	shm     platform.SharedMemory
	lock    *lockfile.Lock
	o       *oieb.View
	meta    []byte
	payload []byte
	semW    platform.Semaphore
	semR    platform.Semaphore
	ring    *ring.Reader
	log     *zap.Logger
	met     *metrics.Set
	closed  bool
}

// NewReader creates a new buffer named name with the given metadata and
// payload section sizes, claiming it exclusively (spec.md §4.5 step 1).
func NewReader(name string, metadataSize, payloadSize uint64, opts Options) (*Reader, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	p := opts.Platform

	lock, wasStale, err := lockfile.Acquire(p, name)
	if err != nil {
		return nil, err
	}
	if wasStale {
		opts.Logger.Info("reclaiming stale buffer", zap.String("name", name))
		_ = p.UnlinkSHM(shmName(name))
		_ = p.SemUnlink(semWriteName(name))
		_ = p.SemUnlink(semReadName(name))
	}

	metaAligned := align64(metadataSize)
	payloadAligned := align64(payloadSize)
	total := int64(align64(oieb.Size) + metaAligned + payloadAligned)

	shm, err := p.OpenOrCreateSHM(shmName(name), total, true)
	if err != nil {
		lock.Close()
		return nil, errs.Newf(errs.KindAlreadyExists, err, "create shared region %q", name)
	}

	region := shm.Bytes()
	ov, err := oieb.New(region)
	if err != nil {
		shm.Close()
		lock.Close()
		return nil, errs.Newf(errs.KindInvalidOIEB, err, "map oieb")
	}
	ov.Init(metaAligned, payloadAligned, p.CurrentPID())

	metaStart := align64(oieb.Size)
	meta := region[metaStart : metaStart+metaAligned]
	payload := region[metaStart+metaAligned : metaStart+metaAligned+payloadAligned]

	semW, err := p.SemCreate(semWriteName(name), 0)
	if err != nil {
		shm.Close()
		lock.Close()
		return nil, errs.Newf(errs.KindResourceExhausted, err, "create sem-w")
	}
	semR, err := p.SemCreate(semReadName(name), 0)
	if err != nil {
		semW.Close()
		shm.Close()
		lock.Close()
		return nil, errs.Newf(errs.KindResourceExhausted, err, "create sem-r")
	}

	r := &Reader{
		name: name, plat: p, shm: shm, lock: lock, o: ov,
		meta: meta, payload: payload, semW: semW, semR: semR,
		log: opts.Logger, met: opts.Metrics,
	}
	r.ring = ring.NewReader(payload, ov, semR, semW, opts.Timeout, p.ProcessExists)

	r.log.Info("reader created", zap.String("name", name),
		zap.Uint64("metadata_size", metaAligned), zap.Uint64("payload_size", payloadAligned))
	return r, nil
}

// ReadMetadata returns the metadata block's written bytes. It fails with
// kind NotFound if no metadata has been written yet (spec.md §4.5).
func (r *Reader) ReadMetadata() ([]byte, error) {
	written := r.o.MetadataWrittenBytes()
	if written <= 8 {
		return nil, errs.New(errs.KindNotFound, "no metadata written")
	}
	n := binary.LittleEndian.Uint64(r.meta[:8])
	return r.meta[8 : 8+n], nil
}

// ReadFrame blocks until a frame is available, a writer dies, or the
// configured timeout elapses. The returned Frame must be released with
// Frame.Release before the next call to ReadFrame.
func (r *Reader) ReadFrame() (*Frame, error) {
	v, err := r.ring.Read()
	if err != nil {
		if errs.KindOf(err) == errs.KindWriterDead {
			r.log.Warn("writer death detected", zap.String("name", r.name))
			r.met.RecordPeerDeath("reader")
		}
		return nil, err
	}
	return &Frame{v: v, reader: r}, nil
}

// IsWriterConnected reports whether a live writer currently holds this
// buffer.
func (r *Reader) IsWriterConnected() bool {
	pid := r.o.WriterPID()
	return pid != 0 && r.plat.ProcessExists(int(pid))
}

// Name returns the buffer name this Reader owns.
func (r *Reader) Name() string { return r.name }

// Close clears reader_pid, releases the reader's semaphore and shared
// memory handles, unlinks the system-wide names, and releases the lock
// file. Any outstanding Frame becomes invalid (spec.md §4.5 Close).
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.o.SetReaderPID(0)

	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	record(r.semW.Close())
	record(r.semR.Close())
	record(r.shm.Close())
	record(r.plat.UnlinkSHM(shmName(r.name)))
	record(r.plat.SemUnlink(semWriteName(r.name)))
	record(r.plat.SemUnlink(semReadName(r.name)))
	record(r.lock.Close())

	r.log.Info("reader closed", zap.String("name", r.name))
	return first
}

// Frame is a borrowed, zero-copy view of one frame's payload, returned
// by Reader.ReadFrame.
type Frame struct {
	v      *ring.FrameView
	reader *Reader
}

// Bytes returns the frame payload. Valid only until Release.
func (f *Frame) Bytes() []byte { return f.v.Bytes() }

// Sequence returns the frame's sequence number.
func (f *Frame) Sequence() uint64 { return f.v.Sequence() }

// Release returns the frame's space to the writer. Calling Release
// twice on the same Frame panics.
func (f *Frame) Release() error {
	err := f.v.Release()
	f.reader.met.IncFramesRead()
	f.reader.met.SetBytesFree(f.reader.o.PayloadFreeBytes())
	return err
}
