// Package pathing implements the containment guard: the only way a
// caller-supplied path becomes a path that filesystem operations may use.
//
// A [Guard] joins its root with an unsafe relative path, canonicalizes the
// result and accepts it only if the canonical path still lies inside of the
// root. Since the check happens after all symbolic links were resolved, a
// link pointing outside of the root is rejected like any ".." traversal.
package pathing

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/desertwitch/filebox/internal/schema"
	"golang.org/x/sys/unix"
)

type canonicalizer interface {
	Canonicalize(path string) (string, error)
	MaxPathLen() int
}

type osProvider interface {
	Stat(name string) (os.FileInfo, error)
	OpenRoot(name string) (*os.Root, error)
}

type resolveObserver interface {
	ObserveResolve(kind schema.Kind, success bool, took time.Duration)
}

// Options adjusts the behavior of a [Guard].
type Options struct {
	// RevealContainment reports paths outside of the root as "permission
	// denied" instead of "no such file or directory".
	RevealContainment bool

	// Observer is informed about the outcome of every resolution.
	Observer resolveObserver
}

// Guard is the principal implementation of the containment guard. The root
// is fixed at construction, a [Guard] is safe for concurrent use.
type Guard struct {
	root          string
	canonHandler  canonicalizer
	osHandler     osProvider
	observer      resolveObserver
	violationCode unix.Errno
}

// NewGuard returns a pointer to a new [Guard] for a root. The root must be an
// absolute path to an existing directory; it is canonicalized once here.
func NewGuard(root string, canonHandler canonicalizer, osHandler osProvider, opts Options) (*Guard, error) {
	if root == "" {
		return nil, fmt.Errorf("(pathing) %w", ErrNoRoot)
	}
	if !isAbs(root) {
		return nil, fmt.Errorf("(pathing) %w: %s", ErrRootIsRelative, root)
	}

	resolved, err := canonHandler.Canonicalize(root)
	if err != nil {
		return nil, fmt.Errorf("(pathing) failed to resolve root: %w", err)
	}

	info, err := osHandler.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("(pathing) failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("(pathing) %w: %s", ErrRootNotDir, root)
	}

	violationCode := unix.ENOENT
	if opts.RevealContainment {
		violationCode = unix.EACCES
	}

	return &Guard{
		root:          resolved,
		canonHandler:  canonHandler,
		osHandler:     osHandler,
		observer:      opts.Observer,
		violationCode: violationCode,
	}, nil
}

// Root returns the canonical root of the [Guard].
func (g *Guard) Root() string {
	return g.root
}

// Resolve turns an unsafe relative path into a canonical absolute path inside
// of the root. An empty path is the root itself. The returned path is meant
// for immediate use; it is not guaranteed to stay valid when the filesystem
// changes afterwards.
func (g *Guard) Resolve(userPath string) (string, error) {
	start := time.Now()

	resolved, err := g.resolve(userPath)

	if g.observer != nil {
		g.observer.ObserveResolve(schema.KindOf(err), err == nil, time.Since(start))
	}

	return resolved, err
}

func (g *Guard) resolve(userPath string) (string, error) {
	// An absolute path must never replace the root.
	if isAbs(userPath) || strings.IndexByte(userPath, 0) >= 0 {
		return "", g.violation(userPath)
	}

	candidate := joinRoot(g.root, userPath)
	if len(candidate) > g.canonHandler.MaxPathLen() {
		return "", schema.NewResolveError(userPath, unix.ENAMETOOLONG)
	}

	resolved, err := g.canonHandler.Canonicalize(candidate)
	if err != nil {
		var rerr *schema.ResolveError
		if errors.As(err, &rerr) {
			return "", rerr.WithPath(userPath)
		}

		return "", fmt.Errorf("cannot open %s: %w", userPath, err)
	}

	if !IsContained(g.root, resolved) {
		return "", g.violation(userPath)
	}

	return resolved, nil
}

// ResolveParent resolves everything but the final element of an unsafe
// relative path, for operations that create that element. It returns the
// canonical parent directory inside of the root and the validated final
// element. The final element itself is not resolved, so callers must not
// follow a symbolic link found there.
func (g *Guard) ResolveParent(userPath string) (string, string, error) {
	if isAbs(userPath) || strings.IndexByte(userPath, 0) >= 0 {
		return "", "", g.violation(userPath)
	}

	dirPart, base := splitBase(userPath)
	if base == "" || base == "." || base == ".." {
		return "", "", schema.NewResolveError(userPath, unix.EINVAL)
	}

	dir, err := g.Resolve(dirPart)
	if err != nil {
		var rerr *schema.ResolveError
		if errors.As(err, &rerr) {
			return "", "", rerr.WithPath(userPath)
		}

		return "", "", err
	}

	if len(dir)+1+len(base) > g.canonHandler.MaxPathLen() {
		return "", "", schema.NewResolveError(userPath, unix.ENAMETOOLONG)
	}

	return dir, base, nil
}

// Relative maps a path inside of the root to its display form, which starts
// at "/" for the root and never exposes where the root is located.
func (g *Guard) Relative(resolved string) string {
	if !IsContained(g.root, resolved) {
		return ""
	}

	rel := strings.TrimPrefix(resolved, g.root)
	if g.root == "/" {
		rel = resolved
	}
	if rel == "" {
		return "/"
	}

	return rel
}

// RootRelative maps a path inside of the root to the relative form expected
// by [os.Root], which is "." for the root itself.
func (g *Guard) RootRelative(resolved string) string {
	rel := trimLeadingSlash(g.Relative(resolved))
	if rel == "" {
		return "."
	}

	return rel
}

// OpenRoot opens the root as an [os.Root], for operations that need to stay
// inside of the root at the time of the syscall as well.
func (g *Guard) OpenRoot() (*os.Root, error) {
	root, err := g.osHandler.OpenRoot(g.root)
	if err != nil {
		return nil, fmt.Errorf("(pathing) failed to open root: %w", err)
	}

	return root, nil
}

// violation returns the error for a path outside of the root. Unless
// configured otherwise it reads like a missing file, so that callers cannot
// probe for the existence of files outside of the root.
func (g *Guard) violation(userPath string) *schema.ResolveError {
	slog.Warn("Denied access to path outside of root",
		"path", userPath,
	)

	return &schema.ResolveError{
		Path:  userPath,
		Kind:  schema.KindContainmentViolation,
		Errno: g.violationCode,
	}
}
