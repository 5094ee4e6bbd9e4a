//go:build linux

package platform

// golang.org/x/sys/unix has no wrapper for sem_open/sem_timedwait/sem_post:
// POSIX named semaphores are librt/libpthread symbols, not kernel syscalls,
// so there is no vDSO/syscall entry point for the pure-Go unix package to
// bind. No example in the retrieval pack wraps POSIX semaphores in pure
// Go either. This file binds libc directly via cgo, which is the standard
// technique for this one primitive (see DESIGN.md) and matches spec.md
// §4.1's own naming of sem_open/sem_wait/sem_post/sem_unlink.
//
// sem_open is variadic in C (mode_t and unsigned int only appear with
// O_CREAT); cgo cannot call variadic C functions, so two tiny fixed-arity
// shims forward to it.

/*
#include <semaphore.h>
#include <fcntl.h>
#include <errno.h>
#include <time.h>
#include <stdlib.h>

static sem_t *zb_sem_create(const char *name, mode_t mode, unsigned int value) {
	return sem_open(name, O_CREAT | O_EXCL, mode, value);
}

static sem_t *zb_sem_open(const char *name) {
	return sem_open(name, 0);
}
*/
import "C"

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

type posixSemaphore struct {
	name string
	sem  *C.sem_t
}

func semName(name string) string {
	// POSIX requires the leading slash; names may not contain further
	// slashes.
	return "/" + name
}

func (posix) SemCreate(name string, initial uint32) (Semaphore, error) {
	cname := C.CString(semName(name))
	defer C.free(unsafe.Pointer(cname))

	sem, errno := C.zb_sem_create(cname, C.mode_t(0o600), C.uint(initial))
	if sem == nil {
		return nil, fmt.Errorf("sem_open create %q: %w", name, errno)
	}
	return &posixSemaphore{name: name, sem: sem}, nil
}

func (posix) SemOpen(name string) (Semaphore, error) {
	cname := C.CString(semName(name))
	defer C.free(unsafe.Pointer(cname))

	sem, errno := C.zb_sem_open(cname)
	if sem == nil {
		return nil, fmt.Errorf("sem_open %q: %w", name, errno)
	}
	return &posixSemaphore{name: name, sem: sem}, nil
}

func (posix) SemUnlink(name string) error {
	cname := C.CString(semName(name))
	defer C.free(unsafe.Pointer(cname))
	if ret, errno := C.sem_unlink(cname); ret != 0 {
		if errno == unix.ENOENT {
			return nil
		}
		return fmt.Errorf("sem_unlink %q: %w", name, errno)
	}
	return nil
}

func (s *posixSemaphore) Wait(timeout time.Duration) (WaitResult, error) {
	var ts C.struct_timespec
	C.clock_gettime(C.CLOCK_REALTIME, &ts)
	addNanos := ts.tv_nsec + C.long(timeout.Nanoseconds()%int64(time.Second))
	ts.tv_sec += C.long(timeout / time.Second)
	if addNanos >= 1_000_000_000 {
		ts.tv_sec++
		addNanos -= 1_000_000_000
	}
	ts.tv_nsec = addNanos

	ret, errno := C.sem_timedwait(s.sem, &ts)
	if ret != 0 {
		if errno == unix.ETIMEDOUT {
			return TimedOut, nil
		}
		return TimedOut, fmt.Errorf("sem_timedwait %q: %w", s.name, errno)
	}
	return Signalled, nil
}

func (s *posixSemaphore) Post() error {
	if ret, errno := C.sem_post(s.sem); ret != 0 {
		return fmt.Errorf("sem_post %q: %w", s.name, errno)
	}
	return nil
}

func (s *posixSemaphore) Close() error {
	if ret, errno := C.sem_close(s.sem); ret != 0 {
		return fmt.Errorf("sem_close %q: %w", s.name, errno)
	}
	return nil
}
