//go:build !linux

package platform

import (
	"fmt"
	"runtime"
)

// New returns the Platform implementation for the current OS. Only Linux
// is implemented; spec.md §4.1 also describes a Win32 backend
// (CreateFileMapping / CreateSemaphore / LockFileEx / OpenProcess), but
// the retrieval pack contains no Windows-syscall example to ground a
// faithful implementation on, so it is stubbed rather
// than guessed at.
func New() Platform { return unsupported{} }

type unsupported struct{}

var errUnsupported = fmt.Errorf("zerobuffer: platform backend not implemented for %s", runtime.GOOS)

func (unsupported) OpenOrCreateSHM(string, int64, bool) (SharedMemory, error) { return nil, errUnsupported }
func (unsupported) UnlinkSHM(string) error                                   { return errUnsupported }
func (unsupported) SemCreate(string, uint32) (Semaphore, error)              { return nil, errUnsupported }
func (unsupported) SemOpen(string) (Semaphore, error)                        { return nil, errUnsupported }
func (unsupported) SemUnlink(string) error                                   { return errUnsupported }
func (unsupported) LockFile(string) (FileLock, error)                        { return nil, errUnsupported }
func (unsupported) TryLockFile(string) (bool, error)                         { return false, errUnsupported }
func (unsupported) ProcessExists(int) bool                                   { return false }
func (unsupported) CurrentPID() uint64                                      { return 0 }
