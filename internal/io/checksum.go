package io

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"
)

//nolint:containedctx
type contextReader struct {
	ctx    context.Context
	reader io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	select {
	case <-cr.ctx.Done():
		return 0, context.Canceled
	default:
		return cr.reader.Read(p)
	}
}

// Checksum returns the hex encoded BLAKE3 digest of the content of a regular
// file. Other elements fail with [ErrNotRegular] without being read.
func (i *Handler) Checksum(ctx context.Context, path string) (string, error) {
	target, err := i.guard.Resolve(path)
	if err != nil {
		return "", err
	}

	file, err := i.openFile(target, os.O_RDONLY|unix.O_NONBLOCK)
	if err != nil {
		return "", fmt.Errorf("(io-checksum) cannot open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("(io-checksum) failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("(io-checksum) %w: %s", ErrNotRegular, path)
	}

	hasher := blake3.New()

	ctxReader := &contextReader{
		ctx:    ctx,
		reader: file,
	}

	if _, err := io.Copy(hasher, ctxReader); err != nil {
		if errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("(io-checksum) checksum canceled: %w", err)
		}

		return "", fmt.Errorf("(io-checksum) failed to read %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
