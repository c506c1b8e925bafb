package filesystem

import (
	"fmt"
	"time"

	"github.com/desertwitch/filebox/internal/schema"
	"golang.org/x/sys/unix"
)

// AttributeNames are the names accepted by [Handler.Attribute].
var AttributeNames = []string{
	"mode", "dev", "ino", "nlink", "uid", "gid", "rdev",
	"access", "modification", "change", "size", "permissions",
	"blocks", "blksize",
}

// Attributes returns the metadata of a path. Symbolic links are followed, as
// for any other operation.
func (f *Handler) Attributes(path string) (*schema.Attributes, error) {
	resolved, err := f.resolve(path)
	if err != nil {
		return nil, err
	}

	var stat unix.Stat_t
	if err := f.unixHandler.Stat(resolved, &stat); err != nil {
		return nil, fmt.Errorf("(fs-attributes) failed to stat %s: %w", path, err)
	}

	return attributesOf(&stat), nil
}

// SymlinkAttributes returns the metadata of a path without following a
// symbolic link as the final element. Links in the parent directories are
// followed and must resolve inside of the root.
func (f *Handler) SymlinkAttributes(path string) (*schema.Attributes, error) {
	target, err := f.resolveParent(path)
	if err != nil {
		return nil, err
	}

	var stat unix.Stat_t
	if err := f.unixHandler.Lstat(target, &stat); err != nil {
		return nil, fmt.Errorf("(fs-attributes) failed to lstat %s: %w", path, err)
	}

	return attributesOf(&stat), nil
}

// Attribute returns a single attribute of a path by its name, which must be
// one of [AttributeNames].
func (f *Handler) Attribute(path string, name string) (any, error) {
	attrs, err := f.Attributes(path)
	if err != nil {
		return nil, err
	}

	return AttributeByName(attrs, name)
}

// AttributeByName picks a single attribute out of a [schema.Attributes].
func AttributeByName(attrs *schema.Attributes, name string) (any, error) {
	switch name {
	case "mode":
		return attrs.Mode, nil
	case "dev":
		return attrs.Dev, nil
	case "ino":
		return attrs.Ino, nil
	case "nlink":
		return attrs.Nlink, nil
	case "uid":
		return attrs.UID, nil
	case "gid":
		return attrs.GID, nil
	case "rdev":
		return attrs.Rdev, nil
	case "access":
		return attrs.Access, nil
	case "modification":
		return attrs.Modification, nil
	case "change":
		return attrs.Change, nil
	case "size":
		return attrs.Size, nil
	case "permissions":
		return attrs.Permissions, nil
	case "blocks":
		return attrs.Blocks, nil
	case "blksize":
		return attrs.Blksize, nil
	default:
		return nil, fmt.Errorf("%w '%s'", ErrInvalidAttribute, name)
	}
}

//nolint:unconvert
func attributesOf(stat *unix.Stat_t) *schema.Attributes {
	return &schema.Attributes{
		Mode:         modeName(uint32(stat.Mode)),
		Dev:          uint64(stat.Dev),
		Ino:          uint64(stat.Ino),
		Nlink:        uint64(stat.Nlink),
		UID:          stat.Uid,
		GID:          stat.Gid,
		Rdev:         uint64(stat.Rdev),
		Access:       timeOf(stat.Atim),
		Modification: timeOf(stat.Mtim),
		Change:       timeOf(stat.Ctim),
		Size:         stat.Size,
		Permissions:  permString(uint32(stat.Mode)),
		Blocks:       int64(stat.Blocks),
		Blksize:      int64(stat.Blksize),
	}
}

func timeOf(ts unix.Timespec) time.Time {
	return time.Unix(ts.Unix())
}
