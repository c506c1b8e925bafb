package filesystem

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/desertwitch/filebox/internal/schema"
	"golang.org/x/sys/unix"
)

const dirBatchSize = 64

// Mkdir creates a new directory with [DirPerms]. The parent directory must
// resolve inside of the root; an existing element of the same name, also a
// symbolic link, is never followed and fails the call.
func (f *Handler) Mkdir(path string) error {
	target, err := f.resolveParent(path)
	if err != nil {
		return err
	}

	if err := f.unixHandler.Mkdir(target, DirPerms); err != nil {
		return fmt.Errorf("(fs-mkdir) failed to create %s: %w", path, err)
	}

	return nil
}

// Rmdir removes an empty directory. The root itself cannot be removed, and a
// symbolic link as the final element is not followed.
func (f *Handler) Rmdir(path string) error {
	if isRootPath(path) {
		return fmt.Errorf("(fs-rmdir) %w", ErrRemoveRoot)
	}

	target, err := f.resolveParent(path)
	if err != nil {
		return err
	}

	if err := f.unixHandler.Rmdir(target); err != nil {
		return fmt.Errorf("(fs-rmdir) failed to remove %s: %w", path, err)
	}

	return nil
}

// DirIterator returns the names inside of a directory, one at a time. The
// names "." and ".." are not returned. The underlying directory is closed once
// all names were returned, or when [DirIterator.Close] is called.
type DirIterator struct {
	file      *os.File
	names     []string
	err       error
	closed    bool
	exhausted bool
}

// Dir opens a directory for iteration.
func (f *Handler) Dir(path string) (*DirIterator, error) {
	resolved, err := f.resolve(path)
	if err != nil {
		return nil, err
	}

	file, err := f.osHandler.Open(resolved)
	if err != nil {
		return nil, schema.NewResolveError(path, errnoOf(err))
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()

		return nil, fmt.Errorf("(fs-dir) failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		file.Close()

		return nil, schema.NewResolveError(path, unix.ENOTDIR)
	}

	return &DirIterator{file: file}, nil
}

// Next returns the next name and true, or false once there are no more names
// or an error occurred, which is then available from [DirIterator.Err].
func (d *DirIterator) Next() (string, bool) {
	for len(d.names) == 0 {
		if d.closed {
			if !d.exhausted && d.err == nil {
				d.err = ErrDirClosed
			}

			return "", false
		}

		names, err := d.file.Readdirnames(dirBatchSize)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				d.err = fmt.Errorf("(fs-dir) failed to read directory: %w", err)
			}
			d.exhausted = true
			d.Close()

			return "", false
		}

		d.names = names
	}

	name := d.names[0]
	d.names = d.names[1:]

	return name, true
}

// Err returns the error that ended the iteration, if any.
func (d *DirIterator) Err() error {
	return d.err
}

// Close closes the underlying directory. It is safe to call more than once.
func (d *DirIterator) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.names = nil

	if err := d.file.Close(); err != nil {
		return fmt.Errorf("(fs-dir) failed to close directory: %w", err)
	}

	return nil
}

// List returns the entries of a directory with their metadata, directories
// first and then sorted by name. Entries vanishing while being listed are
// skipped.
func (f *Handler) List(path string) ([]schema.Entry, error) {
	resolved, err := f.resolve(path)
	if err != nil {
		return nil, err
	}

	dirEntries, err := f.osHandler.ReadDir(resolved)
	if err != nil {
		return nil, schema.NewResolveError(path, errnoOf(err))
	}

	entries := make([]schema.Entry, 0, len(dirEntries))
	for _, entry := range dirEntries {
		info, err := entry.Info()
		if err != nil {
			slog.Debug("Skipped entry: failed to get info", "path", path, "name", entry.Name(), "err", err)

			continue
		}

		entries = append(entries, schema.Entry{
			Name:    entry.Name(),
			Path:    strings.TrimPrefix(f.guard.Relative(joinPath(resolved, entry.Name())), "/"),
			Mode:    FileModeName(info.Mode()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   info.IsDir(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}

		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})

	return entries, nil
}
