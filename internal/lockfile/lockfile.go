// Package lockfile arbitrates buffer-name creation races and detects
// stale resources left behind by a crashed reader, per spec.md §4.7. The
// lock file lives under the per-user temporary directory and its
// filesystem advisory lock is released by the OS the instant the holding
// process dies, which is what lets a later reader tell "in use" apart
// from "abandoned".
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelingevolution/zerobuffer/errs"
	"github.com/modelingevolution/zerobuffer/platform"
)

// Path returns the lock file path for a buffer name, under the
// per-user temporary directory.
func Path(name string) string {
	return filepath.Join(os.TempDir(), "zerobuffer", name+".lock")
}

// Lock is a held, exclusive lock file. Close releases it.
type Lock struct {
	fl platform.FileLock
}

// Close releases the lock.
func (l *Lock) Close() error { return l.fl.Close() }

// Acquire implements spec.md §4.7's creation-race arbitration: it
// acquires the lock file exclusively, failing with already-exists if
// another live process already holds it. wasStale reports whether a
// lock file already existed for name with no live holder: an earlier
// reader either crashed or closed (Reader.Close leaves the lock file on
// disk), and any shared region and semaphores it left behind are for
// this call's caller to reclaim.
func Acquire(p platform.Platform, name string) (lock *Lock, wasStale bool, err error) {
	path := Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, errs.Newf(errs.KindResourceExhausted, err, "create lock directory")
	}

	if _, statErr := os.Stat(path); statErr == nil {
		held, tryErr := p.TryLockFile(path)
		if tryErr == nil {
			wasStale = !held
		}
	}

	fl, err := p.LockFile(path)
	if err != nil {
		return nil, false, errs.New(errs.KindAlreadyExists, fmt.Sprintf("buffer %q is already owned by a live reader", name))
	}
	return &Lock{fl: fl}, wasStale, nil
}
