package aferofs

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/desertwitch/filebox/internal/schema"
)

// userPath maps an afero name to a path relative to the root.
func userPath(name string) string {
	return strings.TrimLeft(name, "/")
}

func isRoot(name string) bool {
	for _, elem := range strings.Split(userPath(name), "/") {
		if elem != "" && elem != "." {
			return false
		}
	}

	return true
}

// pathError converts a resolution error into an [fs.PathError] carrying the
// errno, which is what the checks of the os package understand.
func pathError(op, name string, err error) error {
	var rerr *schema.ResolveError
	if errors.As(err, &rerr) {
		return &fs.PathError{Op: op, Path: name, Err: rerr.Errno}
	}

	return &fs.PathError{Op: op, Path: name, Err: err}
}

// hidePath replaces the host path in an [fs.PathError] with the name the
// caller used.
func hidePath(err error, name string) error {
	if err == nil {
		return nil
	}

	var perr *fs.PathError
	if errors.As(err, &perr) {
		return &fs.PathError{Op: perr.Op, Path: name, Err: perr.Err}
	}

	return err
}
