// Package filesystem implements the directory and metadata operations of a
// confined file box. Every path argument is an unsafe, caller-supplied path
// that is resolved through the containment guard exactly once before any
// syscall uses it.
package filesystem

import (
	"os"
	"strings"
	"sync"

	"github.com/desertwitch/filebox/internal/schema"
	"github.com/desertwitch/filebox/internal/syscalls"
	"golang.org/x/sys/unix"
)

// DirPerms are the permissions of directories created by [Handler.Mkdir],
// before the umask of the process is applied.
const DirPerms = unix.S_IRWXU | unix.S_IRWXG | unix.S_IROTH | unix.S_IXOTH

type guardProvider interface {
	Resolve(userPath string) (string, error)
	ResolveParent(userPath string) (string, string, error)
	Relative(resolved string) string
}

type osProvider interface {
	Open(name string) (*os.File, error)
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	ReadDir(name string) ([]os.DirEntry, error)
}

type unixProvider interface {
	Lstat(path string, stat *unix.Stat_t) error
	Mkdir(path string, mode uint32) error
	Rmdir(path string) error
	Stat(path string, stat *unix.Stat_t) error
	UtimesNano(path string, times []unix.Timespec) error
}

var (
	_ osProvider   = (*syscalls.OS)(nil)
	_ unixProvider = (*syscalls.Unix)(nil)
)

// Handler is the principal implementation of the directory and metadata
// operations. Paths are always resolved against the root, the same way every
// other consumer of the guard resolves them. The working directory of a
// [Handler] is navigation state only: it is what [Handler.CurrentDir] reports
// to a browser, and the working directory of the process is never changed.
type Handler struct {
	sync.RWMutex
	guard       guardProvider
	osHandler   osProvider
	unixHandler unixProvider
	workDir     string
}

// NewHandler returns a pointer to a new [Handler], with the working directory
// set to the root of the guard.
func NewHandler(guard guardProvider, osHandler osProvider, unixHandler unixProvider) *Handler {
	return &Handler{
		guard:       guard,
		osHandler:   osHandler,
		unixHandler: unixHandler,
	}
}

// Chdir changes the working directory of the [Handler]. The path must resolve
// to a directory inside of the root.
func (f *Handler) Chdir(path string) error {
	resolved, err := f.resolve(path)
	if err != nil {
		return err
	}

	var stat unix.Stat_t
	if err := f.unixHandler.Stat(resolved, &stat); err != nil {
		return schema.NewResolveError(path, errnoOf(err))
	}
	if stat.Mode&unix.S_IFMT != unix.S_IFDIR {
		return schema.NewResolveError(path, unix.ENOTDIR)
	}

	f.Lock()
	f.workDir = strings.TrimPrefix(f.guard.Relative(resolved), "/")
	f.Unlock()

	return nil
}

// CurrentDir returns the working directory of the [Handler], relative to the
// root and starting with "/".
func (f *Handler) CurrentDir() string {
	f.RLock()
	defer f.RUnlock()

	return "/" + f.workDir
}

func (f *Handler) resolve(path string) (string, error) {
	return f.guard.Resolve(path)
}

func (f *Handler) resolveParent(path string) (string, error) {
	dir, base, err := f.guard.ResolveParent(path)
	if err != nil {
		return "", err
	}

	return joinPath(dir, base), nil
}
