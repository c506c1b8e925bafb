package schema

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind classifies why a path could not be resolved inside a root.
type Kind int

const (
	KindUnknown Kind = iota
	KindPathTooLong
	KindNotFound
	KindNotADirectory
	KindPermissionDenied
	KindTooManySymlinks
	KindContainmentViolation
)

var (
	// ErrPathTooLong occurs when a combined or resolved path exceeds the
	// configured maximum path length.
	ErrPathTooLong = errors.New("path too long")

	// ErrNotFound occurs when a component of the path does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotADirectory occurs when a non-terminal component of the path is
	// not a directory.
	ErrNotADirectory = errors.New("not a directory")

	// ErrPermissionDenied occurs when the operating system refused a lookup
	// of a path component.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTooManySymlinks occurs when a symbolic link chain is cyclic or deeper
	// than the configured limit.
	ErrTooManySymlinks = errors.New("too many levels of symbolic links")

	// ErrContainment occurs when a path resolves to a location outside of the
	// configured root, or when an absolute path was given that would replace
	// the root.
	ErrContainment = errors.New("path escapes root")
)

func (k Kind) String() string {
	switch k {
	case KindPathTooLong:
		return "PathTooLong"
	case KindNotFound:
		return "NotFound"
	case KindNotADirectory:
		return "NotADirectory"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindTooManySymlinks:
		return "TooManySymlinks"
	case KindContainmentViolation:
		return "ContainmentViolation"
	default:
		return "Unknown"
	}
}

// Sentinel returns the sentinel error matching the [Kind], or nil for
// [KindUnknown].
func (k Kind) Sentinel() error {
	switch k {
	case KindPathTooLong:
		return ErrPathTooLong
	case KindNotFound:
		return ErrNotFound
	case KindNotADirectory:
		return ErrNotADirectory
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindTooManySymlinks:
		return ErrTooManySymlinks
	case KindContainmentViolation:
		return ErrContainment
	default:
		return nil
	}
}

// KindOfErrno translates an operating system error number into a [Kind].
func KindOfErrno(errno unix.Errno) Kind {
	switch errno { //nolint:exhaustive
	case unix.ENAMETOOLONG:
		return KindPathTooLong
	case unix.ENOENT:
		return KindNotFound
	case unix.ENOTDIR:
		return KindNotADirectory
	case unix.EACCES, unix.EPERM:
		return KindPermissionDenied
	case unix.ELOOP:
		return KindTooManySymlinks
	default:
		return KindUnknown
	}
}

// ResolveError is returned for any path that could not be resolved into a
// contained path. Its message follows the "cannot open <path>: <reason>"
// format, where the reason is the text of the carried errno.
type ResolveError struct {
	Path  string
	Kind  Kind
	Errno unix.Errno
}

// NewResolveError returns a pointer to a new [ResolveError] for an errno,
// with the [Kind] derived from it.
func NewResolveError(path string, errno unix.Errno) *ResolveError {
	return &ResolveError{
		Path:  path,
		Kind:  KindOfErrno(errno),
		Errno: errno,
	}
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("cannot open %s: %s", e.Path, e.Errno.Error())
}

// Is reports a match against the sentinel error of the [Kind].
func (e *ResolveError) Is(target error) bool {
	sentinel := e.Kind.Sentinel()

	return sentinel != nil && target == sentinel
}

// Unwrap returns the carried errno, so that checks like
// errors.Is(err, fs.ErrNotExist) keep working.
func (e *ResolveError) Unwrap() error {
	return e.Errno
}

// WithPath returns a copy of the [ResolveError] reporting a different path.
func (e *ResolveError) WithPath(path string) *ResolveError {
	c := *e
	c.Path = path

	return &c
}

// KindOf returns the [Kind] of a [ResolveError] anywhere in the chain of err,
// or [KindUnknown] if there is none.
func KindOf(err error) Kind {
	var rerr *ResolveError
	if errors.As(err, &rerr) {
		return rerr.Kind
	}

	return KindUnknown
}

// Repath returns err with the reported path replaced, if err is or wraps a
// [ResolveError]. Other errors are returned unchanged. It is used by layers
// that resolve a path derived from the one the caller supplied.
func Repath(err error, path string) error {
	var rerr *ResolveError
	if errors.As(err, &rerr) {
		return rerr.WithPath(path)
	}

	return err
}
