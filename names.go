package zerobuffer

import (
	"regexp"

	"github.com/modelingevolution/zerobuffer/errs"
)

// nameRE is the buffer-name grammar implied by spec.md §6's external
// naming conventions (sem-w-<name>, sem-r-<name>, a POSIX shm path
// component, and a lock-file path segment): ASCII alphanumerics, dot,
// underscore and hyphen, capped well below PATH_MAX.
var nameRE = regexp.MustCompile(`^[A-Za-z0-9._-]{1,255}$`)

func validateName(name string) error {
	if !nameRE.MatchString(name) {
		return errs.New(errs.KindInvalidArgument, "buffer name must match [A-Za-z0-9._-]{1,255}")
	}
	return nil
}

func shmName(name string) string      { return name }
func semWriteName(name string) string { return "sem-w-" + name }
func semReadName(name string) string  { return "sem-r-" + name }

// align64 rounds n up to the next multiple of 64, per spec.md §3's
// section-alignment rule.
func align64(n uint64) uint64 {
	const a = 64
	return (n + a - 1) / a * a
}
