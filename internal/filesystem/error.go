package filesystem

import "errors"

var (
	// ErrRemoveRoot occurs when an attempt is made to remove the root itself.
	ErrRemoveRoot = errors.New("cannot remove root")

	// ErrInvalidAttribute occurs when an attribute is requested by a name
	// that is not one of [AttributeNames].
	ErrInvalidAttribute = errors.New("invalid attribute name")

	// ErrDirClosed occurs when a [DirIterator] is used after it was closed.
	ErrDirClosed = errors.New("closed directory")
)
