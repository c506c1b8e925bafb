package filesystem

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Touch sets the access and modification times of an existing path. Without
// an access time both are set to the current time; without a modification
// time it is set to the access time.
func (f *Handler) Touch(path string, atime, mtime *time.Time) error {
	resolved, err := f.resolve(path)
	if err != nil {
		return err
	}

	access := time.Now()
	if atime != nil {
		access = *atime
	}

	modification := access
	if mtime != nil {
		modification = *mtime
	}

	ts := []unix.Timespec{
		unix.NsecToTimespec(access.UnixNano()),
		unix.NsecToTimespec(modification.UnixNano()),
	}
	if err := f.unixHandler.UtimesNano(resolved, ts); err != nil {
		return fmt.Errorf("(fs-touch) failed to set timestamps on %s: %w", path, err)
	}

	return nil
}
