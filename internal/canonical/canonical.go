// Package canonical resolves paths into their canonical absolute form, the way
// realpath(3) does: all symbolic links followed and all "." and ".." elements
// eliminated, as the filesystem currently sees it.
//
// The resolution is an explicit walk over the path elements, using lstat and
// readlink on each prefix. Every failure is reported as a
// [schema.ResolveError] carrying the errno of the underlying lookup.
package canonical

import (
	"errors"
	"strings"

	"github.com/desertwitch/filebox/internal/schema"
	"golang.org/x/sys/unix"
)

const (
	// DefaultMaxPathLen is the maximum length of an input or resolved path,
	// unless otherwise configured.
	DefaultMaxPathLen = 1024

	// DefaultMaxSymlinks is the maximum number of symbolic links followed
	// during a single resolution, unless otherwise configured.
	DefaultMaxSymlinks = 40
)

type osProvider interface {
	Getwd() (string, error)
	Readlink(name string) (string, error)
}

type unixProvider interface {
	Lstat(path string, stat *unix.Stat_t) error
}

// Limits bounds a resolution. Zero values are replaced with the defaults.
type Limits struct {
	MaxPathLen  int
	MaxSymlinks int
}

// Canonicalizer is the principal implementation of the path canonicalization.
// It holds no state between calls and is safe for concurrent use.
type Canonicalizer struct {
	osHandler   osProvider
	unixHandler unixProvider
	maxPathLen  int
	maxSymlinks int
}

// NewCanonicalizer returns a pointer to a new [Canonicalizer].
func NewCanonicalizer(osHandler osProvider, unixHandler unixProvider, limits Limits) *Canonicalizer {
	if limits.MaxPathLen <= 0 {
		limits.MaxPathLen = DefaultMaxPathLen
	}
	if limits.MaxSymlinks <= 0 {
		limits.MaxSymlinks = DefaultMaxSymlinks
	}

	return &Canonicalizer{
		osHandler:   osHandler,
		unixHandler: unixHandler,
		maxPathLen:  limits.MaxPathLen,
		maxSymlinks: limits.MaxSymlinks,
	}
}

// MaxPathLen returns the effective maximum path length.
func (c *Canonicalizer) MaxPathLen() int {
	return c.maxPathLen
}

// Canonicalize returns the canonical absolute form of path. A relative path
// is interpreted against the process working directory.
func (c *Canonicalizer) Canonicalize(path string) (string, error) {
	if path == "" {
		return "", schema.NewResolveError(path, unix.ENOENT)
	}
	if strings.IndexByte(path, 0) >= 0 {
		return "", schema.NewResolveError(path, unix.EINVAL)
	}
	if len(path) > c.maxPathLen {
		return "", schema.NewResolveError(path, unix.ENAMETOOLONG)
	}

	pending := path
	if !isAbs(pending) {
		wd, err := c.osHandler.Getwd()
		if err != nil {
			return "", schema.NewResolveError(path, errnoOf(err))
		}
		pending = wd + "/" + pending
		if len(pending) > c.maxPathLen {
			return "", schema.NewResolveError(path, unix.ENAMETOOLONG)
		}
	}

	resolved := "/"
	followed := 0

	for {
		var elem string
		elem, pending = walkPath(pending)

		switch elem {
		case "":
			return resolved, nil
		case ".":
			continue
		case "..":
			resolved = parentDir(resolved)

			continue
		}

		next := joinElem(resolved, elem)
		if len(next) > c.maxPathLen {
			return "", schema.NewResolveError(path, unix.ENAMETOOLONG)
		}

		var stat unix.Stat_t
		if err := c.unixHandler.Lstat(next, &stat); err != nil {
			return "", schema.NewResolveError(path, errnoOf(err))
		}

		switch stat.Mode & unix.S_IFMT {
		case unix.S_IFDIR:
			resolved = next

		case unix.S_IFLNK:
			followed++
			if followed > c.maxSymlinks {
				return "", schema.NewResolveError(path, unix.ELOOP)
			}

			target, err := c.osHandler.Readlink(next)
			if err != nil {
				return "", schema.NewResolveError(path, errnoOf(err))
			}
			if target == "" {
				return "", schema.NewResolveError(path, unix.ENOENT)
			}

			// An absolute target restarts at "/", a relative one at the
			// directory holding the link (which is still resolved).
			if isAbs(target) {
				resolved = "/"
			}
			pending = target + pending
			if len(pending) > c.maxPathLen {
				return "", schema.NewResolveError(path, unix.ENAMETOOLONG)
			}

		default:
			// Anything left after a non-directory, even only a trailing
			// slash, cannot be looked up.
			if pending != "" {
				return "", schema.NewResolveError(path, unix.ENOTDIR)
			}
			resolved = next
		}
	}
}

// errnoOf extracts the errno from an error returned by a lookup.
func errnoOf(err error) unix.Errno {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}

	return unix.EIO
}
