package search

import "errors"

// ErrBadPattern occurs when a glob pattern is malformed.
var ErrBadPattern = errors.New("bad pattern")
