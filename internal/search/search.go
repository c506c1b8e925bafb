// Package search implements recursive operations on a directory tree inside
// of the root: walking, finding by name, globbing and checksumming matches.
// Symbolic links are reported but never descended into.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/desertwitch/filebox/internal/filesystem"
	"github.com/desertwitch/filebox/internal/io"
	"github.com/desertwitch/filebox/internal/schema"
	"golang.org/x/sync/errgroup"
)

type guardProvider interface {
	Resolve(userPath string) (string, error)
	Relative(resolved string) string
	OpenRoot() (*os.Root, error)
}

type checksumProvider interface {
	Checksum(ctx context.Context, path string) (string, error)
}

// Options adjusts the behavior of a [Handler].
type Options struct {
	// Workers is the amount of files checksummed in parallel by
	// [Handler.Sums]. It defaults to the number of CPUs.
	Workers int
}

// Sum is the BLAKE3 digest of a file matched by [Handler.Sums].
type Sum struct {
	Path   string `json:"path"   yaml:"path"`
	Digest string `json:"digest" yaml:"digest"`
}

// Handler is the principal implementation of the search operations.
type Handler struct {
	guard           guardProvider
	checksumHandler checksumProvider
	workers         int
}

// NewHandler returns a pointer to a new [Handler].
func NewHandler(guard guardProvider, checksumHandler checksumProvider, opts Options) *Handler {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Handler{
		guard:           guard,
		checksumHandler: checksumHandler,
		workers:         workers,
	}
}

// Walk calls fn for every element below a directory, with paths relative to
// the root. The calls to fn are serialized, but not ordered. Returning
// [fastwalk.SkipDir] from fn for a directory skips its contents, any other
// error stops the walk.
func (s *Handler) Walk(ctx context.Context, path string, fn func(entry schema.Entry) error) error {
	resolved, err := s.guard.Resolve(path)
	if err != nil {
		return err
	}

	var mu sync.Mutex

	conf := fastwalk.Config{Follow: false}

	err = fastwalk.Walk(&conf, resolved, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			slog.Debug("Skipped path: failed to walk", "path", s.guard.Relative(p), "err", err)

			return nil
		}

		if p == resolved {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Debug("Skipped path: failed to get info", "path", s.guard.Relative(p), "err", err)

			return nil
		}

		entry := schema.Entry{
			Name:    d.Name(),
			Path:    strings.TrimPrefix(s.guard.Relative(p), "/"),
			Mode:    filesystem.FileModeName(info.Mode()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   info.IsDir(),
		}

		mu.Lock()
		defer mu.Unlock()

		return fn(entry)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("(search-walk) walk canceled: %w", err)
		}

		return fmt.Errorf("(search-walk) failed to walk %s: %w", path, err)
	}

	return nil
}

// Find returns all elements below a directory whose name matches a pattern,
// sorted by their path relative to the root.
func (s *Handler) Find(ctx context.Context, path string, pattern string) ([]schema.Entry, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("(search-find) %w: %s", ErrBadPattern, pattern)
	}

	var found []schema.Entry

	err := s.Walk(ctx, path, func(entry schema.Entry) error {
		if ok, _ := doublestar.Match(pattern, entry.Name); ok {
			found = append(found, entry)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Path < found[j].Path
	})

	return found, nil
}

// Glob returns the paths relative to the root that match a pattern, which
// supports "**" for any depth. Matches that do not resolve inside of the root
// are left out.
func (s *Handler) Glob(ctx context.Context, pattern string) ([]string, error) {
	return s.glob(ctx, pattern)
}

func (s *Handler) glob(ctx context.Context, pattern string, opts ...doublestar.GlobOption) ([]string, error) {
	if strings.HasPrefix(pattern, "/") {
		// Absolute paths are containment violations, reported by the guard.
		_, err := s.guard.Resolve(pattern)

		return nil, err
	}

	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("(search-glob) %w: %s", ErrBadPattern, pattern)
	}

	root, err := s.guard.OpenRoot()
	if err != nil {
		return nil, fmt.Errorf("(search-glob) %w", err)
	}
	defer root.Close()

	matches, err := doublestar.Glob(root.FS(), pattern, opts...)
	if err != nil {
		return nil, fmt.Errorf("(search-glob) failed to glob %s: %w", pattern, err)
	}

	contained := make([]string, 0, len(matches))
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("(search-glob) glob canceled: %w", err)
		}

		if _, err := s.guard.Resolve(match); err != nil {
			slog.Debug("Skipped match: failed to resolve", "path", match, "err", err)

			continue
		}

		contained = append(contained, match)
	}

	sort.Strings(contained)

	return contained, nil
}

// Sums returns the BLAKE3 digests of all regular files matching a pattern,
// computed in parallel. The result is sorted like the matches of
// [Handler.Glob]; matches that are not regular files are left out.
func (s *Handler) Sums(ctx context.Context, pattern string) ([]Sum, error) {
	matches, err := s.glob(ctx, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}

	sums := make([]Sum, len(matches))
	hashed := make([]bool, len(matches))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)

	for i, match := range matches {
		group.Go(func() error {
			digest, err := s.checksumHandler.Checksum(ctx, match)
			if errors.Is(err, io.ErrNotRegular) {
				slog.Debug("Skipped match: not a regular file", "path", match)

				return nil
			}
			if err != nil {
				return fmt.Errorf("(search-sums) failed to hash %s: %w", match, err)
			}

			sums[i] = Sum{Path: match, Digest: digest}
			hashed[i] = true

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := make([]Sum, 0, len(sums))
	for i, sum := range sums {
		if hashed[i] {
			result = append(result, sum)
		}
	}

	return result, nil
}
