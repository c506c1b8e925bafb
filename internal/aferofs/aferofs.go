// Package aferofs provides an [afero.Fs] that is confined to the root of a
// containment guard, so that code written against afero can be given access
// to a file box without further changes.
//
// Names are interpreted relative to the root; a leading "/" is the root
// itself, as with [afero.BasePathFs]. Errors follow the conventions of the os
// package, so that helpers like [afero.Exists] keep working, and never
// report the host location of the root.
package aferofs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/desertwitch/filebox/internal/schema"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

type guardProvider interface {
	Resolve(userPath string) (string, error)
	ResolveParent(userPath string) (string, string, error)
}

var (
	_ afero.Fs      = (*Fs)(nil)
	_ afero.Lstater = (*Fs)(nil)
)

// ErrRemoveRoot occurs when an attempt is made to remove the root itself.
var ErrRemoveRoot = errors.New("cannot remove root")

// Fs is an [afero.Fs] whose every name is resolved through the guard before
// the underlying filesystem is touched.
type Fs struct {
	guard guardProvider
	base  afero.Fs
}

// New returns a pointer to a new [Fs] on top of the operating system.
func New(guard guardProvider) *Fs {
	return NewWithBase(guard, afero.NewOsFs())
}

// NewWithBase returns a pointer to a new [Fs] on top of another [afero.Fs],
// which must operate on the same paths as the guard.
func NewWithBase(guard guardProvider, base afero.Fs) *Fs {
	return &Fs{
		guard: guard,
		base:  base,
	}
}

// boxFile reports the name it was opened with instead of the host path.
type boxFile struct {
	afero.File
	name string
}

func (b *boxFile) Name() string {
	return b.name
}

// Name returns the name of the filesystem.
func (f *Fs) Name() string {
	return "FileboxFs"
}

// Create creates or truncates a file.
func (f *Fs) Create(name string) (afero.File, error) {
	return f.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

// Open opens a file or directory for reading.
func (f *Fs) Open(name string) (afero.File, error) {
	resolved, err := f.resolve("open", name)
	if err != nil {
		return nil, err
	}

	file, err := f.base.Open(resolved)
	if err != nil {
		return nil, hidePath(err, name)
	}

	return &boxFile{File: file, name: name}, nil
}

// OpenFile opens a file with flags like [os.OpenFile]. When a new file is
// created, a symbolic link found in its place is not followed.
func (f *Fs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	resolved, err := f.guard.Resolve(userPath(name))
	if err != nil {
		if flag&os.O_CREATE == 0 || schema.KindOf(err) != schema.KindNotFound {
			return nil, pathError("open", name, err)
		}

		resolved, err = f.resolveParent("open", name)
		if err != nil {
			return nil, err
		}
		flag |= unix.O_NOFOLLOW
	}

	file, err := f.base.OpenFile(resolved, flag, perm)
	if err != nil {
		return nil, hidePath(err, name)
	}

	return &boxFile{File: file, name: name}, nil
}

// Mkdir creates a directory. An existing element of the same name is never
// followed.
func (f *Fs) Mkdir(name string, perm os.FileMode) error {
	target, err := f.resolveParent("mkdir", name)
	if err != nil {
		return err
	}

	return hidePath(f.base.Mkdir(target, perm), name)
}

// MkdirAll creates a directory along with any missing parents. Each created
// element is resolved on its own, so a symbolic link in the path leading
// outside of the root stops the creation.
func (f *Fs) MkdirAll(path string, perm os.FileMode) error {
	elems := strings.FieldsFunc(userPath(path), func(r rune) bool {
		return r == '/'
	})

	current := ""
	for _, elem := range elems {
		if current == "" {
			current = elem
		} else {
			current += "/" + elem
		}

		info, err := f.Stat(current)
		if err == nil {
			if !info.IsDir() {
				return &fs.PathError{Op: "mkdir", Path: current, Err: unix.ENOTDIR}
			}

			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		if err := f.Mkdir(current, perm); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
	}

	return nil
}

// Remove removes a file or an empty directory. A symbolic link is removed
// itself, not its target.
func (f *Fs) Remove(name string) error {
	if isRoot(name) {
		return fmt.Errorf("(aferofs-remove) %w", ErrRemoveRoot)
	}

	target, err := f.resolveParent("remove", name)
	if err != nil {
		return err
	}

	return hidePath(f.base.Remove(target), name)
}

// RemoveAll removes a path and everything it contains. Symbolic links are
// removed, not followed.
func (f *Fs) RemoveAll(path string) error {
	if isRoot(path) {
		return fmt.Errorf("(aferofs-removeall) %w", ErrRemoveRoot)
	}

	target, err := f.resolveParent("removeall", path)
	if err != nil {
		return err
	}

	return hidePath(f.base.RemoveAll(target), path)
}

// Rename moves an element inside of the root. Neither name has its final
// element followed.
func (f *Fs) Rename(oldname, newname string) error {
	if isRoot(oldname) || isRoot(newname) {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: unix.EBUSY}
	}

	oldTarget, err := f.resolveParent("rename", oldname)
	if err != nil {
		return err
	}

	newTarget, err := f.resolveParent("rename", newname)
	if err != nil {
		return err
	}

	if err := f.base.Rename(oldTarget, newTarget); err != nil {
		var lerr *os.LinkError
		if errors.As(err, &lerr) {
			return &os.LinkError{Op: lerr.Op, Old: oldname, New: newname, Err: lerr.Err}
		}

		return hidePath(err, oldname)
	}

	return nil
}

// Stat returns the [os.FileInfo] of a name, following symbolic links.
func (f *Fs) Stat(name string) (os.FileInfo, error) {
	resolved, err := f.resolve("stat", name)
	if err != nil {
		return nil, err
	}

	info, err := f.base.Stat(resolved)
	if err != nil {
		return nil, hidePath(err, name)
	}

	return info, nil
}

// LstatIfPossible returns the [os.FileInfo] of a name without following a
// symbolic link as the final element.
func (f *Fs) LstatIfPossible(name string) (os.FileInfo, bool, error) {
	if isRoot(name) {
		info, err := f.Stat(name)

		return info, true, err
	}

	target, err := f.resolveParent("lstat", name)
	if err != nil {
		return nil, true, err
	}

	lstater, ok := f.base.(afero.Lstater)
	if !ok {
		info, err := f.base.Stat(target)

		return info, false, hidePath(err, name)
	}

	info, lstatCalled, err := lstater.LstatIfPossible(target)

	return info, lstatCalled, hidePath(err, name)
}

// Chmod changes the permissions of a name.
func (f *Fs) Chmod(name string, mode os.FileMode) error {
	resolved, err := f.resolve("chmod", name)
	if err != nil {
		return err
	}

	return hidePath(f.base.Chmod(resolved, mode), name)
}

// Chown changes the ownership of a name.
func (f *Fs) Chown(name string, uid, gid int) error {
	resolved, err := f.resolve("chown", name)
	if err != nil {
		return err
	}

	return hidePath(f.base.Chown(resolved, uid, gid), name)
}

// Chtimes changes the access and modification times of a name.
func (f *Fs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	resolved, err := f.resolve("chtimes", name)
	if err != nil {
		return err
	}

	return hidePath(f.base.Chtimes(resolved, atime, mtime), name)
}

func (f *Fs) resolve(op, name string) (string, error) {
	resolved, err := f.guard.Resolve(userPath(name))
	if err != nil {
		return "", pathError(op, name, err)
	}

	return resolved, nil
}

func (f *Fs) resolveParent(op, name string) (string, error) {
	dir, base, err := f.guard.ResolveParent(userPath(name))
	if err != nil {
		return "", pathError(op, name, err)
	}

	if dir == "/" {
		return "/" + base, nil
	}

	return dir + "/" + base, nil
}
