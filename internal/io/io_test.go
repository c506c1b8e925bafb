package io

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertwitch/filebox/internal/canonical"
	"github.com/desertwitch/filebox/internal/pathing"
	"github.com/desertwitch/filebox/internal/schema"
	"github.com/desertwitch/filebox/internal/syscalls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"
)

// newTree creates the following tree and returns its canonical base:
//
//	base/outside.txt
//	base/root/                   (the root)
//	base/root/lines.txt
//	base/root/numbers.txt
//	base/root/sub/
//	base/root/link-lines   -> lines.txt
//	base/root/link-out     -> ../outside.txt
//	base/root/dangling-out -> ../created-outside.txt
func newTree(t *testing.T) string {
	t.Helper()

	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	root := filepath.Join(base, "root")

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "outside.txt"), []byte("outside"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "lines.txt"), []byte("first\nsecond\nthird"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "numbers.txt"), []byte("  42 3.5\n0x10 nope"), 0o600))
	require.NoError(t, os.Symlink("lines.txt", filepath.Join(root, "link-lines")))
	require.NoError(t, os.Symlink("../outside.txt", filepath.Join(root, "link-out")))
	require.NoError(t, os.Symlink("../created-outside.txt", filepath.Join(root, "dangling-out")))

	return base
}

func newTestHandler(t *testing.T, opts Options) (*Handler, string) {
	t.Helper()

	base := newTree(t)
	root := filepath.Join(base, "root")

	canon := canonical.NewCanonicalizer(&syscalls.OS{}, &syscalls.Unix{}, canonical.Limits{})

	guard, err := pathing.NewGuard(root, canon, &syscalls.OS{}, pathing.Options{})
	require.NoError(t, err)

	return NewHandler(guard, &syscalls.OS{}, opts), root
}

// TestParseMode tests the translation of C-style modes.
func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode string
		want int
	}{
		{"r", os.O_RDONLY},
		{"rb", os.O_RDONLY},
		{"w", os.O_WRONLY | os.O_CREATE | os.O_TRUNC},
		{"a", os.O_WRONLY | os.O_CREATE | os.O_APPEND},
		{"r+", os.O_RDWR},
		{"w+b", os.O_RDWR | os.O_CREATE | os.O_TRUNC},
		{"a+", os.O_RDWR | os.O_CREATE | os.O_APPEND},
	}

	for _, tc := range tests {
		t.Run("Success_"+tc.mode, func(t *testing.T) {
			t.Parallel()

			got, err := parseMode(tc.mode)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, mode := range []string{"", "x", "rw", "r++", "+r", "wb+x"} {
		t.Run("Fail_"+mode, func(t *testing.T) {
			t.Parallel()

			_, err := parseMode(mode)
			require.ErrorIs(t, err, ErrInvalidMode)
		})
	}
}

// TestOpen tests [Handler.Open] in both the plain and the hardened mode.
func TestOpen(t *testing.T) {
	t.Parallel()

	for _, hardened := range []bool{false, true} {
		name := "Plain"
		if hardened {
			name = "Hardened"
		}

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			t.Run("Success_ReadThroughLink", func(t *testing.T) {
				t.Parallel()

				h, _ := newTestHandler(t, Options{Hardened: hardened})

				f, err := h.Open("link-lines", "r")
				require.NoError(t, err)
				defer f.Close()

				got, err := f.Read("a")
				require.NoError(t, err)
				assert.Equal(t, []any{"first\nsecond\nthird"}, got)
			})

			t.Run("Success_CreateNew", func(t *testing.T) {
				t.Parallel()

				h, root := newTestHandler(t, Options{Hardened: hardened})

				f, err := h.Open("sub/new.txt", "w")
				require.NoError(t, err)
				require.NoError(t, f.Write("hello ", 42, "\n"))
				require.NoError(t, f.Close())

				data, err := os.ReadFile(filepath.Join(root, "sub", "new.txt"))
				require.NoError(t, err)
				assert.Equal(t, "hello 42\n", string(data))
			})

			t.Run("Success_TruncateExisting", func(t *testing.T) {
				t.Parallel()

				h, root := newTestHandler(t, Options{Hardened: hardened})

				f, err := h.Open("link-lines", "w")
				require.NoError(t, err)
				require.NoError(t, f.Write("x"))
				require.NoError(t, f.Close())

				data, err := os.ReadFile(filepath.Join(root, "lines.txt"))
				require.NoError(t, err)
				assert.Equal(t, "x", string(data))
			})

			t.Run("Fail_LinkOutside", func(t *testing.T) {
				t.Parallel()

				h, _ := newTestHandler(t, Options{Hardened: hardened})

				_, err := h.Open("link-out", "r")
				require.ErrorIs(t, err, schema.ErrContainment)
				assert.Equal(t, "cannot open link-out: no such file or directory", err.Error())
			})

			t.Run("Fail_CreateThroughDanglingLink", func(t *testing.T) {
				t.Parallel()

				h, root := newTestHandler(t, Options{Hardened: hardened})

				_, err := h.Open("dangling-out", "w")
				require.Error(t, err)
				assert.NoFileExists(t, filepath.Join(filepath.Dir(root), "created-outside.txt"))
			})

			t.Run("Fail_CreateOutside", func(t *testing.T) {
				t.Parallel()

				h, _ := newTestHandler(t, Options{Hardened: hardened})

				_, err := h.Open("../new.txt", "w")
				require.ErrorIs(t, err, schema.ErrContainment)
			})

			t.Run("Fail_ReadMissing", func(t *testing.T) {
				t.Parallel()

				h, _ := newTestHandler(t, Options{Hardened: hardened})

				_, err := h.Open("missing.txt", "r")
				require.ErrorIs(t, err, schema.ErrNotFound)
			})
		})
	}

	t.Run("Fail_InvalidMode", func(t *testing.T) {
		t.Parallel()

		h, _ := newTestHandler(t, Options{})

		_, err := h.Open("lines.txt", "rw")
		require.ErrorIs(t, err, ErrInvalidMode)
	})

	t.Run("Fail_CreateParentMissing", func(t *testing.T) {
		t.Parallel()

		h, _ := newTestHandler(t, Options{})

		_, err := h.Open("nope/new.txt", "a")
		require.ErrorIs(t, err, schema.ErrNotFound)
	})
}

// TestFile_Read tests the read formats of a [File].
func TestFile_Read(t *testing.T) {
	t.Parallel()

	t.Run("Success_Lines", func(t *testing.T) {
		t.Parallel()

		h, _ := newTestHandler(t, Options{})

		f, err := h.Open("lines.txt", "")
		require.NoError(t, err)
		defer f.Close()

		got, err := f.Read()
		require.NoError(t, err)
		assert.Equal(t, []any{"first"}, got)

		got, err = f.Read("*L", 3, "l")
		require.NoError(t, err)
		assert.Equal(t, []any{"second\n", "thi", "rd"}, got)

		got, err = f.Read("l", "l")
		require.NoError(t, err)
		assert.Equal(t, []any{nil}, got, "reading stops at the end of the file")

		got, err = f.Read(0)
		require.NoError(t, err)
		assert.Equal(t, []any{nil}, got)

		got, err = f.Read("a")
		require.NoError(t, err)
		assert.Equal(t, []any{""}, got)
	})

	t.Run("Success_Numbers", func(t *testing.T) {
		t.Parallel()

		h, _ := newTestHandler(t, Options{})

		f, err := h.Open("numbers.txt", "r")
		require.NoError(t, err)
		defer f.Close()

		got, err := f.Read("n", "n", "n", "n")
		require.NoError(t, err)
		assert.Equal(t, []any{float64(42), 3.5, float64(16), nil}, got)
	})

	t.Run("Fail_InvalidFormat", func(t *testing.T) {
		t.Parallel()

		h, _ := newTestHandler(t, Options{})

		f, err := h.Open("lines.txt", "r")
		require.NoError(t, err)
		defer f.Close()

		_, err = f.Read("x")
		require.ErrorIs(t, err, ErrInvalidFormat)

		_, err = f.Read(1.5)
		require.ErrorIs(t, err, ErrInvalidFormat)
	})
}

// TestFile_ReadWrite tests mixing reads, writes and seeks on one [File].
func TestFile_ReadWrite(t *testing.T) {
	t.Parallel()

	h, root := newTestHandler(t, Options{})

	f, err := h.Open("lines.txt", "r+")
	require.NoError(t, err)

	got, err := f.Read("l")
	require.NoError(t, err)
	assert.Equal(t, []any{"first"}, got)

	require.NoError(t, f.Write("SECOND"))

	pos, err := f.Seek("cur", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(12), pos)

	got, err = f.Read("a")
	require.NoError(t, err)
	assert.Equal(t, []any{"\nthird"}, got)

	pos, err = f.Seek("set", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)

	size, err := f.Seek("end", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(18), size)

	_, err = f.Seek("middle", 0)
	require.ErrorIs(t, err, ErrInvalidOption)

	require.NoError(t, f.Close())

	data, err := os.ReadFile(filepath.Join(root, "lines.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first\nSECOND\nthird", string(data))
}

// TestFile_Buffering tests [File.SetVBuf] and [File.Flush].
func TestFile_Buffering(t *testing.T) {
	t.Parallel()

	readBack := func(t *testing.T, path string) string {
		t.Helper()

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		return string(data)
	}

	t.Run("Success_Full", func(t *testing.T) {
		t.Parallel()

		h, root := newTestHandler(t, Options{})

		f, err := h.Open("out.txt", "w")
		require.NoError(t, err)
		defer f.Close()

		require.NoError(t, f.Write("buffered\n"))
		assert.Empty(t, readBack(t, filepath.Join(root, "out.txt")))

		require.NoError(t, f.Flush())
		assert.Equal(t, "buffered\n", readBack(t, filepath.Join(root, "out.txt")))
	})

	t.Run("Success_Line", func(t *testing.T) {
		t.Parallel()

		h, root := newTestHandler(t, Options{})

		f, err := h.Open("out.txt", "w")
		require.NoError(t, err)
		defer f.Close()

		require.NoError(t, f.SetVBuf("line", 0))
		require.NoError(t, f.Write("partial"))
		assert.Empty(t, readBack(t, filepath.Join(root, "out.txt")))

		require.NoError(t, f.Write(" line\n"))
		assert.Equal(t, "partial line\n", readBack(t, filepath.Join(root, "out.txt")))
	})

	t.Run("Success_None", func(t *testing.T) {
		t.Parallel()

		h, root := newTestHandler(t, Options{})

		f, err := h.Open("out.txt", "a")
		require.NoError(t, err)
		defer f.Close()

		require.NoError(t, f.SetVBuf("no", 0))
		require.NoError(t, f.Write(1.5))
		assert.Equal(t, "1.5", readBack(t, filepath.Join(root, "out.txt")))
	})

	t.Run("Fail_Invalid", func(t *testing.T) {
		t.Parallel()

		h, _ := newTestHandler(t, Options{})

		f, err := h.Open("out.txt", "w")
		require.NoError(t, err)
		defer f.Close()

		require.ErrorIs(t, f.SetVBuf("sometimes", 0), ErrInvalidOption)
		require.ErrorIs(t, f.Write(struct{}{}), ErrInvalidValue)
	})
}

// TestFile_Lines tests [File.Lines].
func TestFile_Lines(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, Options{})

	f, err := h.Open("lines.txt", "r")
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	for line, err := range f.Lines() {
		require.NoError(t, err)
		lines = append(lines, line)
	}

	assert.Equal(t, []string{"first", "second", "third"}, lines)
}

// TestFile_Close tests the behavior of a closed [File].
func TestFile_Close(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, Options{})

	f, err := h.Open("lines.txt", "r")
	require.NoError(t, err)

	assert.Equal(t, "file", Type(f))
	assert.True(t, strings.HasPrefix(f.String(), "file (0x"))
	assert.Equal(t, "lines.txt", f.Name())

	require.NoError(t, f.Close())

	assert.Equal(t, "closed file", Type(f))
	assert.Equal(t, "file (closed)", f.String())
	assert.Empty(t, Type("lines.txt"))

	require.ErrorIs(t, f.Close(), ErrFileClosed)
	require.ErrorIs(t, f.Write("x"), ErrFileClosed)
	require.ErrorIs(t, f.Flush(), ErrFileClosed)
	require.ErrorIs(t, f.SetVBuf("no", 0), ErrFileClosed)

	_, err = f.Read()
	require.ErrorIs(t, err, ErrFileClosed)

	_, err = f.Seek("set", 0)
	require.ErrorIs(t, err, ErrFileClosed)

	for _, err := range f.Lines() {
		require.ErrorIs(t, err, ErrFileClosed)
	}
}

// TestChecksum tests [Handler.Checksum].
func TestChecksum(t *testing.T) {
	t.Parallel()

	t.Run("Success_Digest", func(t *testing.T) {
		t.Parallel()

		h, root := newTestHandler(t, Options{Hardened: true})
		require.NoError(t, os.WriteFile(filepath.Join(root, "empty.txt"), nil, 0o600))

		sum, err := h.Checksum(context.Background(), "empty.txt")
		require.NoError(t, err)
		assert.Equal(t, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262", sum)

		want := blake3.Sum256([]byte("first\nsecond\nthird"))

		sum, err = h.Checksum(context.Background(), "link-lines")
		require.NoError(t, err)
		assert.Equal(t, hex.EncodeToString(want[:]), sum)
	})

	t.Run("Fail_Canceled", func(t *testing.T) {
		t.Parallel()

		h, _ := newTestHandler(t, Options{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := h.Checksum(ctx, "lines.txt")
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Fail_Directory", func(t *testing.T) {
		t.Parallel()

		h, _ := newTestHandler(t, Options{})

		_, err := h.Checksum(context.Background(), "sub")
		require.ErrorIs(t, err, ErrNotRegular)
	})

	t.Run("Fail_NamedPipe", func(t *testing.T) {
		t.Parallel()

		h, root := newTestHandler(t, Options{Hardened: true})
		require.NoError(t, unix.Mkfifo(filepath.Join(root, "pipe"), 0o600))

		done := make(chan error, 1)
		go func() {
			_, err := h.Checksum(context.Background(), "pipe")
			done <- err
		}()

		select {
		case err := <-done:
			require.ErrorIs(t, err, ErrNotRegular)
		case <-time.After(5 * time.Second):
			t.Fatal("checksumming a named pipe blocked")
		}
	})

	t.Run("Fail_Outside", func(t *testing.T) {
		t.Parallel()

		h, _ := newTestHandler(t, Options{})

		_, err := h.Checksum(context.Background(), "link-out")
		require.ErrorIs(t, err, schema.ErrContainment)
	})
}
