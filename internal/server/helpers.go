package server

import (
	"errors"
	"net/http"

	"golang.org/x/sys/unix"
)

// statusOf maps the errno of a failed resolution to an HTTP status. A hidden
// containment violation carries ENOENT and so becomes a 404 like any other
// missing file.
func statusOf(errno unix.Errno) int {
	switch errno {
	case unix.ENOENT, unix.ENOTDIR:
		return http.StatusNotFound
	case unix.EACCES, unix.EPERM:
		return http.StatusForbidden
	case unix.ENAMETOOLONG, unix.ELOOP, unix.EINVAL, unix.EISDIR:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errnoOf(err error) unix.Errno {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}

	return unix.EIO
}

func displayPath(path string) string {
	if path == "" || path == "." {
		return "/"
	}

	return path
}
