package schema

import "time"

// Attributes is the set of metadata reported for a contained path.
type Attributes struct {
	Mode         string    `json:"mode"         yaml:"mode"`
	Dev          uint64    `json:"dev"          yaml:"dev"`
	Ino          uint64    `json:"ino"          yaml:"ino"`
	Nlink        uint64    `json:"nlink"        yaml:"nlink"`
	UID          uint32    `json:"uid"          yaml:"uid"`
	GID          uint32    `json:"gid"          yaml:"gid"`
	Rdev         uint64    `json:"rdev"         yaml:"rdev"`
	Access       time.Time `json:"access"       yaml:"access"`
	Modification time.Time `json:"modification" yaml:"modification"`
	Change       time.Time `json:"change"       yaml:"change"`
	Size         int64     `json:"size"         yaml:"size"`
	Permissions  string    `json:"permissions"  yaml:"permissions"`
	Blocks       int64     `json:"blocks"       yaml:"blocks"`
	Blksize      int64     `json:"blksize"      yaml:"blksize"`
}

// Entry is a single element of a directory listing. Path is relative to the
// root and never contains the host location of the root.
type Entry struct {
	Name    string    `json:"name"    yaml:"name"`
	Path    string    `json:"path"    yaml:"path"`
	Mode    string    `json:"mode"    yaml:"mode"`
	Size    int64     `json:"size"    yaml:"size"`
	ModTime time.Time `json:"modTime" yaml:"modTime"`
	IsDir   bool      `json:"isDir"   yaml:"isDir"`
}
