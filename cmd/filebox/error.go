package main

import "errors"

var (
	// ErrUsage occurs when a command is called with the wrong arguments.
	ErrUsage = errors.New("invalid usage")

	// ErrUnknownCommand occurs when a command does not exist.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidFormat occurs when an output format is not supported.
	ErrInvalidFormat = errors.New("invalid output format")
)
