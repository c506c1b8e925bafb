package configuration

import "errors"

// ErrInvalidValue occurs when a setting holds a value that cannot be used,
// such as a non-positive limit.
var ErrInvalidValue = errors.New("invalid configuration value")
