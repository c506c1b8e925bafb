package filesystem

import (
	"errors"
	"io/fs"
	"strings"

	"golang.org/x/sys/unix"
)

func joinPath(dir, base string) string {
	if dir == "/" {
		return "/" + base
	}

	return dir + "/" + base
}

// isRootPath reports if a relative path lexically names the directory it is
// relative to, such as "", "." or "./.".
func isRootPath(path string) bool {
	for _, elem := range strings.Split(path, "/") {
		if elem != "" && elem != "." {
			return false
		}
	}

	return !strings.HasPrefix(path, "/")
}

func errnoOf(err error) unix.Errno {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}

	return unix.EIO
}

// modeName returns the name of the file type in a raw stat mode.
func modeName(mode uint32) string {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		return "file"
	case unix.S_IFDIR:
		return "directory"
	case unix.S_IFLNK:
		return "link"
	case unix.S_IFSOCK:
		return "socket"
	case unix.S_IFIFO:
		return "named pipe"
	case unix.S_IFCHR:
		return "char device"
	case unix.S_IFBLK:
		return "block device"
	default:
		return "other"
	}
}

// FileModeName returns the name of the file type in a [fs.FileMode], using
// the same names as the "mode" attribute.
func FileModeName(mode fs.FileMode) string {
	switch {
	case mode.IsRegular():
		return "file"
	case mode.IsDir():
		return "directory"
	case mode&fs.ModeSymlink != 0:
		return "link"
	case mode&fs.ModeSocket != 0:
		return "socket"
	case mode&fs.ModeNamedPipe != 0:
		return "named pipe"
	case mode&fs.ModeCharDevice != 0:
		return "char device"
	case mode&fs.ModeDevice != 0:
		return "block device"
	default:
		return "other"
	}
}

// permString renders the permission bits of a raw stat mode like "rwxr-xr-x".
func permString(mode uint32) string {
	const letters = "rwxrwxrwx"

	perms := []byte("---------")
	for i := range perms {
		if mode&(1<<uint(8-i)) != 0 {
			perms[i] = letters[i]
		}
	}

	return string(perms)
}
