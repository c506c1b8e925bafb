package filesystem

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/desertwitch/filebox/internal/schema"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sys/unix"
)

// DirMimeType is reported by [Handler.MimeType] for directories.
const DirMimeType = "inode/directory"

// MimeType detects the media type of a file from its content. Elements that
// are not regular files are never read and get an "inode/" type instead, so a
// named pipe cannot stall the caller.
func (f *Handler) MimeType(path string) (string, error) {
	resolved, err := f.resolve(path)
	if err != nil {
		return "", err
	}

	file, err := f.osHandler.OpenFile(resolved, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return "", schema.NewResolveError(path, errnoOf(err))
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("(fs-mime) failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return inodeMimeType(info.Mode()), nil
	}

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return "", fmt.Errorf("(fs-mime) failed to detect %s: %w", path, err)
	}

	return mtype.String(), nil
}

// inodeMimeType returns the shared-mime-info type of a special element.
func inodeMimeType(mode fs.FileMode) string {
	switch {
	case mode.IsDir():
		return DirMimeType
	case mode&fs.ModeNamedPipe != 0:
		return "inode/fifo"
	case mode&fs.ModeSocket != 0:
		return "inode/socket"
	case mode&fs.ModeCharDevice != 0:
		return "inode/chardevice"
	case mode&fs.ModeDevice != 0:
		return "inode/blockdevice"
	default:
		return "application/octet-stream"
	}
}
