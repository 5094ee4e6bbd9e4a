// Package platform abstracts the operating-system capabilities a
// zerobuffer region needs: named shared memory, named counting
// semaphores, an exclusive file lock, and a process-existence probe.
// One implementation exists per operating system family; callers use
// only this interface (spec.md §4.1).
package platform

import "time"

// WaitResult is the outcome of a semaphore wait with a timeout.
type WaitResult int

const (
	// Signalled means the semaphore was decremented; the caller holds
	// one unit of it.
	Signalled WaitResult = iota
	// TimedOut means the deadline elapsed with no signal observed.
	TimedOut
)

// SharedMemory is a mapped, named shared-memory region.
type SharedMemory interface {
	// Bytes returns the mapped region. Valid until Close.
	Bytes() []byte
	// Close unmaps the region. It does not remove the system-wide name;
	// call Platform.UnlinkSHM for that.
	Close() error
}

// Semaphore is a named counting semaphore.
type Semaphore interface {
	// Wait blocks until the semaphore is signalled or timeout elapses.
	Wait(timeout time.Duration) (WaitResult, error)
	// Post increments the semaphore's count. Never blocks.
	Post() error
	// Close releases this process's handle to the semaphore. It does
	// not remove the system-wide name.
	Close() error
}

// FileLock is an exclusive, non-blocking advisory lock on a filesystem
// path, released by Close or by OS-enforced release on process death.
type FileLock interface {
	Close() error
}

// Platform is the capability set a Reader/Writer needs from the host OS.
type Platform interface {
	// OpenOrCreateSHM opens (create=false) or exclusively creates
	// (create=true) a named shared-memory region of the given size and
	// maps it. create=true fails with an already-exists error if the
	// name exists; create=false fails with not-found if it doesn't.
	OpenOrCreateSHM(name string, size int64, create bool) (SharedMemory, error)
	// UnlinkSHM removes the system-wide name. Existing mappings remain
	// valid until their handles are closed.
	UnlinkSHM(name string) error

	// SemCreate creates a named counting semaphore with the given
	// initial count, failing if it already exists.
	SemCreate(name string, initial uint32) (Semaphore, error)
	// SemOpen opens an existing named counting semaphore.
	SemOpen(name string) (Semaphore, error)
	// SemUnlink removes the system-wide semaphore name.
	SemUnlink(name string) error

	// LockFile acquires an exclusive, non-blocking lock on path,
	// creating it if necessary. It fails if another live process holds
	// the lock.
	LockFile(path string) (FileLock, error)
	// TryLockFile reports whether path is currently lock-held by a live
	// process without blocking and without creating the file.
	TryLockFile(path string) (held bool, err error)

	// ProcessExists is a best-effort liveness probe for pid.
	ProcessExists(pid int) bool

	// CurrentPID returns the current process's identifier as stored in
	// OIEB reader_pid/writer_pid fields.
	CurrentPID() uint64
}
