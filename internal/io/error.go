package io

import "errors"

var (
	// ErrInvalidMode occurs when a file is opened with a mode other than
	// "r", "w", "a", "r+", "w+" or "a+", each optionally followed by "b".
	ErrInvalidMode = errors.New("invalid mode")

	// ErrInvalidFormat occurs when [File.Read] is given an unknown format.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidOption occurs when [File.Seek] or [File.SetVBuf] is given an
	// unknown option.
	ErrInvalidOption = errors.New("invalid option")

	// ErrInvalidValue occurs when [File.Write] is given a value that is
	// neither a string nor a number.
	ErrInvalidValue = errors.New("invalid value")

	// ErrNotRegular occurs when [Handler.Checksum] is given an element that
	// is not a regular file.
	ErrNotRegular = errors.New("not a regular file")

	// ErrFileClosed occurs when a [File] is used after it was closed.
	ErrFileClosed = errors.New("attempt to use a closed file")
)
