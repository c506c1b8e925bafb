// Package io implements file handles on contained paths. A [Handler] opens
// files only after their path was resolved inside of the root; in hardened
// mode the open itself is additionally confined through an [os.Root].
package io

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/desertwitch/filebox/internal/schema"
	"github.com/desertwitch/filebox/internal/syscalls"
	"golang.org/x/sys/unix"
)

// FilePerms are the permissions of files created by [Handler.Open], before the
// umask of the process is applied.
const FilePerms = 0o666

type guardProvider interface {
	Resolve(userPath string) (string, error)
	ResolveParent(userPath string) (string, string, error)
	RootRelative(resolved string) string
	OpenRoot() (*os.Root, error)
}

type osProvider interface {
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
}

var _ osProvider = (*syscalls.OS)(nil)

// Options adjusts the behavior of a [Handler].
type Options struct {
	// Hardened opens files through an [os.Root] of the root, so that a path
	// swapped for a symbolic link after its resolution still cannot lead
	// outside of the root.
	Hardened bool
}

// Handler is the principal implementation of the file operations.
type Handler struct {
	guard     guardProvider
	osHandler osProvider
	hardened  bool
}

// NewHandler returns a pointer to a new [Handler].
func NewHandler(guard guardProvider, osHandler osProvider, opts Options) *Handler {
	return &Handler{
		guard:     guard,
		osHandler: osHandler,
		hardened:  opts.Hardened,
	}
}

// Open opens a file with a C-style mode ("r" when empty). Modes that create
// files resolve the parent directory when the file does not exist yet, and
// never follow a symbolic link found in place of the new file.
func (i *Handler) Open(path string, mode string) (*File, error) {
	if mode == "" {
		mode = "r"
	}

	flags, err := parseMode(mode)
	if err != nil {
		return nil, err
	}

	target, err := i.guard.Resolve(path)
	if err != nil {
		if flags&os.O_CREATE == 0 || schema.KindOf(err) != schema.KindNotFound {
			return nil, err
		}

		dir, base, perr := i.guard.ResolveParent(path)
		if perr != nil {
			return nil, perr
		}

		target = dir + "/" + base
		if dir == "/" {
			target = "/" + base
		}
		flags |= unix.O_NOFOLLOW
	}

	file, err := i.openFile(target, flags)
	if err != nil {
		var errno unix.Errno
		if errors.As(err, &errno) {
			return nil, schema.NewResolveError(path, errno)
		}

		return nil, fmt.Errorf("(io-open) cannot open %s: %w", path, err)
	}

	return newFile(path, file), nil
}

func (i *Handler) openFile(target string, flags int) (*os.File, error) {
	if !i.hardened {
		return i.osHandler.OpenFile(target, flags, FilePerms)
	}

	root, err := i.guard.OpenRoot()
	if err != nil {
		return nil, err
	}
	defer root.Close()

	return root.OpenFile(i.guard.RootRelative(target), flags, FilePerms)
}

// parseMode translates a C-style mode into flags for [os.OpenFile].
func parseMode(mode string) (int, error) {
	rest := mode
	if rest == "" || !strings.ContainsRune("rwa", rune(rest[0])) {
		return 0, fmt.Errorf("(io-open) %w '%s'", ErrInvalidMode, mode)
	}

	kind := rest[0]
	rest = rest[1:]

	update := strings.HasPrefix(rest, "+")
	if update {
		rest = rest[1:]
	}

	if strings.Trim(rest, "b") != "" {
		return 0, fmt.Errorf("(io-open) %w '%s'", ErrInvalidMode, mode)
	}

	var flags int
	switch kind {
	case 'r':
		flags = os.O_RDONLY
	case 'w':
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case 'a':
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}

	if update {
		flags &^= os.O_WRONLY
		flags |= os.O_RDWR
	}

	return flags, nil
}
