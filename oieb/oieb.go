// Package oieb provides a typed, aligned view over the Operation Info
// Exchange Block: the fixed 128-byte header that opens every zerobuffer
// shared region. Field access goes through sync/atomic so that a release
// store by one process becomes visible, in order, to an acquire load by
// the peer process — the portable substitute for C++'s
// memory_order_release / memory_order_acquire pair.
package oieb

import (
	"encoding/binary"
	"errors"
	"sync/atomic"
	"unsafe"
)

var errTooSmall = errors.New("oieb: region smaller than header size")

// Size is the fixed, wire-exact size of the OIEB in bytes.
const Size = 128

const fieldCount = 16

// View overlays the sixteen little-endian u64 fields of an OIEB onto a
// byte slice backed by shared memory. The slice must be at least Size
// bytes and must outlive the View.
type View struct {
	b []byte
}

// field offsets, in declaration order (spec.md §3).
const (
	offOperationSize        = 0
	offMetadataSize         = 8
	offMetadataFreeBytes    = 16
	offMetadataWrittenBytes = 24
	offPayloadSize          = 32
	offPayloadFreeBytes     = 40
	offPayloadWritePos      = 48
	offPayloadReadPos       = 56
	offPayloadWrittenCount  = 64
	offPayloadReadCount     = 72
	offWriterPID            = 80
	offReaderPID            = 88
	offReserved0            = 96
	offReserved1            = 104
	offReserved2            = 112
	offReserved3            = 120
)

// New wraps the first Size bytes of region as an OIEB view. It does not
// validate contents; call Validate for that.
func New(region []byte) (*View, error) {
	if len(region) < Size {
		return nil, errTooSmall
	}
	return &View{b: region[:Size]}, nil
}

// Snapshot is a plain-data copy of the twelve non-reserved OIEB fields,
// convenient for logging, tests, and invariant checks that need a
// consistent read of them without the caller hand-rolling twelve loads.
// The four reserved fields are not included.
type Snapshot struct {
	OperationSize        uint64
	MetadataSize         uint64
	MetadataFreeBytes    uint64
	MetadataWrittenBytes uint64
	PayloadSize          uint64
	PayloadFreeBytes     uint64
	PayloadWritePos      uint64
	PayloadReadPos       uint64
	PayloadWrittenCount  uint64
	PayloadReadCount     uint64
	WriterPID            uint64
	ReaderPID            uint64
}

// loadAcquire reads one u64 field with acquire semantics. sync/atomic's
// Load/Store pair is the Go memory model's acquire/release primitive when
// used consistently on both sides of a happens-before edge (here, the
// edge is the semaphore wait/post in the ring engine).
func loadAcquire(b []byte, off int) uint64 {
	p := (*uint64)(unsafe.Pointer(&b[off]))
	return atomic.LoadUint64(p)
}

// storeRelease writes one u64 field with release semantics.
func storeRelease(b []byte, off int, v uint64) {
	p := (*uint64)(unsafe.Pointer(&b[off]))
	atomic.StoreUint64(p, v)
}

// Load performs an acquire-load of every non-reserved field and returns a consistent
// Snapshot. Because SPSC traffic is serialized by the semaphore dance
// (§5), a single pass of per-field acquire loads after a semaphore wait
// is sufficient; no additional fence is required.
func (v *View) Load() Snapshot {
	return Snapshot{
		OperationSize:        loadAcquire(v.b, offOperationSize),
		MetadataSize:         loadAcquire(v.b, offMetadataSize),
		MetadataFreeBytes:    loadAcquire(v.b, offMetadataFreeBytes),
		MetadataWrittenBytes: loadAcquire(v.b, offMetadataWrittenBytes),
		PayloadSize:          loadAcquire(v.b, offPayloadSize),
		PayloadFreeBytes:     loadAcquire(v.b, offPayloadFreeBytes),
		PayloadWritePos:      loadAcquire(v.b, offPayloadWritePos),
		PayloadReadPos:       loadAcquire(v.b, offPayloadReadPos),
		PayloadWrittenCount:  loadAcquire(v.b, offPayloadWrittenCount),
		PayloadReadCount:     loadAcquire(v.b, offPayloadReadCount),
		WriterPID:            loadAcquire(v.b, offWriterPID),
		ReaderPID:            loadAcquire(v.b, offReaderPID),
	}
}

// Init zero-fills the OIEB and writes the initial field values. Called
// once by the reader at buffer creation time (spec.md §4.5 step 3).
func (v *View) Init(metadataSize, payloadSize uint64, readerPID uint64) {
	for i := 0; i < Size; i++ {
		v.b[i] = 0
	}
	storeRelease(v.b, offOperationSize, Size)
	storeRelease(v.b, offMetadataSize, metadataSize)
	storeRelease(v.b, offMetadataFreeBytes, metadataSize)
	storeRelease(v.b, offPayloadSize, payloadSize)
	storeRelease(v.b, offPayloadFreeBytes, payloadSize)
	storeRelease(v.b, offReaderPID, readerPID)
}

// --- individual field accessors (acquire load / release store) ---

func (v *View) OperationSize() uint64     { return loadAcquire(v.b, offOperationSize) }
func (v *View) MetadataSize() uint64      { return loadAcquire(v.b, offMetadataSize) }
func (v *View) PayloadSize() uint64       { return loadAcquire(v.b, offPayloadSize) }
func (v *View) PayloadFreeBytes() uint64  { return loadAcquire(v.b, offPayloadFreeBytes) }
func (v *View) PayloadWritePos() uint64   { return loadAcquire(v.b, offPayloadWritePos) }
func (v *View) PayloadReadPos() uint64    { return loadAcquire(v.b, offPayloadReadPos) }
func (v *View) PayloadWrittenCount() uint64 { return loadAcquire(v.b, offPayloadWrittenCount) }
func (v *View) PayloadReadCount() uint64  { return loadAcquire(v.b, offPayloadReadCount) }
func (v *View) WriterPID() uint64         { return loadAcquire(v.b, offWriterPID) }
func (v *View) ReaderPID() uint64         { return loadAcquire(v.b, offReaderPID) }
func (v *View) MetadataFreeBytes() uint64 { return loadAcquire(v.b, offMetadataFreeBytes) }
func (v *View) MetadataWrittenBytes() uint64 {
	return loadAcquire(v.b, offMetadataWrittenBytes)
}

func (v *View) SetWriterPID(pid uint64)  { storeRelease(v.b, offWriterPID, pid) }
func (v *View) SetReaderPID(pid uint64)  { storeRelease(v.b, offReaderPID, pid) }

// CompareAndSwapWriterPID atomically claims writer_pid: it stores newPID
// only if the field still holds old, and reports whether the swap took
// effect. Two writers racing through a stale or zero writer_pid snapshot
// can thus never both succeed (spec.md §4.6 step 3, invariant P7).
func (v *View) CompareAndSwapWriterPID(old, newPID uint64) bool {
	p := (*uint64)(unsafe.Pointer(&v.b[offWriterPID]))
	return atomic.CompareAndSwapUint64(p, old, newPID)
}

// StoreMetadataWritten records the metadata block's length prefix
// accounting after a successful one-time metadata write.
func (v *View) StoreMetadataWritten(writtenBytes, freeBytes uint64) {
	storeRelease(v.b, offMetadataWrittenBytes, writtenBytes)
	storeRelease(v.b, offMetadataFreeBytes, freeBytes)
}

// WriteAdvance performs the writer-side release store after a frame (or
// wrap marker) has been placed: new write position, new free-byte count,
// and — for real frames only — the incremented written-frame count.
func (v *View) WriteAdvance(newWritePos, newFreeBytes uint64, incrementWrittenCount bool) {
	storeRelease(v.b, offPayloadWritePos, newWritePos)
	storeRelease(v.b, offPayloadFreeBytes, newFreeBytes)
	if incrementWrittenCount {
		cur := loadAcquire(v.b, offPayloadWrittenCount)
		storeRelease(v.b, offPayloadWrittenCount, cur+1)
	}
}

// ReadAdvance performs the reader-side release store after a frame (or
// wrap marker) has been consumed and released.
func (v *View) ReadAdvance(newReadPos, newFreeBytes uint64, incrementReadCount bool) {
	storeRelease(v.b, offPayloadReadPos, newReadPos)
	storeRelease(v.b, offPayloadFreeBytes, newFreeBytes)
	if incrementReadCount {
		cur := loadAcquire(v.b, offPayloadReadCount)
		storeRelease(v.b, offPayloadReadCount, cur+1)
	}
}

// Bytes returns the raw 128-byte backing slice, primarily for tests that
// want to assert on the on-disk layout directly.
func (v *View) Bytes() []byte { return v.b }

// LittleEndianAt reads a raw u64 at a byte offset using explicit
// little-endian decoding, for checking wire-exactness independent of
// host endianness assumptions baked into unsafe casts.
func LittleEndianAt(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+8])
}
