package pathing

import "errors"

var (
	// ErrNoRoot occurs when a [Guard] is constructed without a root.
	ErrNoRoot = errors.New("no root configured")

	// ErrRootIsRelative occurs when a [Guard] is constructed with a relative
	// root, which would make containment depend on the working directory.
	ErrRootIsRelative = errors.New("root path is relative")

	// ErrRootNotDir occurs when the configured root does not resolve to a
	// directory.
	ErrRootNotDir = errors.New("root is not a directory")
)
