package io

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"
	"sync"
)

// DefaultBufferSize is the size of the write buffer of a [File].
const DefaultBufferSize = 4096

// BufferMode is the buffering applied to writes of a [File].
type BufferMode int

const (
	// BufferFull flushes writes once the buffer is full.
	BufferFull BufferMode = iota
	// BufferLine flushes writes whenever a newline was written.
	BufferLine
	// BufferNone writes through immediately.
	BufferNone
)

// File is an open file inside of the root. Reads and writes are buffered and
// may be mixed freely; the buffers are reconciled before switching direction.
// A [File] is safe for concurrent use.
type File struct {
	sync.Mutex
	name    string
	file    *os.File
	reader  *bufio.Reader
	writer  *bufio.Writer
	bufMode BufferMode
	closed  bool
}

func newFile(name string, file *os.File) *File {
	return &File{
		name:   name,
		file:   file,
		reader: bufio.NewReader(file),
		writer: bufio.NewWriterSize(file, DefaultBufferSize),
	}
}

// Name returns the path the [File] was opened with.
func (f *File) Name() string {
	return f.name
}

func (f *File) String() string {
	f.Lock()
	defer f.Unlock()

	if f.closed {
		return "file (closed)"
	}

	return fmt.Sprintf("file (%p)", f)
}

// Type returns "file" for an open [File], "closed file" for a closed one and
// an empty string for anything else.
func Type(v any) string {
	f, ok := v.(*File)
	if !ok || f == nil {
		return ""
	}

	f.Lock()
	defer f.Unlock()

	if f.closed {
		return "closed file"
	}

	return "file"
}

// Read reads according to the given formats, returning one value per format:
//
//   - "n" reads a number and returns a float64
//   - "l" reads a line without its newline and returns a string
//   - "L" reads a line with its newline and returns a string
//   - "a" reads the remaining file and returns a string
//   - an int reads up to that many bytes and returns a string
//
// Without formats a single line is read. A leading "*" on a format is
// ignored. When a format cannot be satisfied at the end of the file, its value
// is nil and no further formats are read.
func (f *File) Read(formats ...any) ([]any, error) {
	f.Lock()
	defer f.Unlock()

	if f.closed {
		return nil, ErrFileClosed
	}

	if err := f.prepareRead(); err != nil {
		return nil, err
	}

	if len(formats) == 0 {
		formats = []any{"l"}
	}

	results := make([]any, 0, len(formats))
	for _, format := range formats {
		v, err := f.readFormat(format)
		if err != nil {
			return nil, err
		}

		results = append(results, v)
		if v == nil {
			break
		}
	}

	return results, nil
}

func (f *File) readFormat(format any) (any, error) {
	switch fv := format.(type) {
	case int:
		return f.readCount(fv)
	case int64:
		return f.readCount(int(fv))
	case string:
		switch strings.TrimPrefix(fv, "*") {
		case "n":
			return f.readNumber()
		case "l":
			return f.readLine(false)
		case "L":
			return f.readLine(true)
		case "a":
			return f.readAll()
		}
	}

	return nil, fmt.Errorf("(io-read) %w '%v'", ErrInvalidFormat, format)
}

func (f *File) readCount(n int) (any, error) {
	if n <= 0 {
		if _, err := f.reader.Peek(1); err != nil {
			return nilOnEOF(err)
		}

		return "", nil
	}

	buf := make([]byte, n)

	read, err := io.ReadFull(f.reader, buf)
	if read > 0 {
		return string(buf[:read]), nil
	}

	return nilOnEOF(err)
}

func (f *File) readLine(keepNewline bool) (any, error) {
	line, err := f.reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("(io-read) failed to read: %w", err)
		}
		if line == "" {
			return nil, nil
		}

		return line, nil
	}

	if !keepNewline {
		line = strings.TrimSuffix(line, "\n")
	}

	return line, nil
}

func (f *File) readAll() (any, error) {
	data, err := io.ReadAll(f.reader)
	if err != nil {
		return nil, fmt.Errorf("(io-read) failed to read: %w", err)
	}

	return string(data), nil
}

func (f *File) readNumber() (any, error) {
	for {
		b, err := f.reader.ReadByte()
		if err != nil {
			return nilOnEOF(err)
		}
		if !isSpace(b) {
			if err := f.reader.UnreadByte(); err != nil {
				return nil, fmt.Errorf("(io-read) failed to read: %w", err)
			}

			break
		}
	}

	var sb strings.Builder
	for {
		b, err := f.reader.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("(io-read) failed to read: %w", err)
			}

			break
		}
		if !isNumberByte(b) {
			if err := f.reader.UnreadByte(); err != nil {
				return nil, fmt.Errorf("(io-read) failed to read: %w", err)
			}

			break
		}
		sb.WriteByte(b)
	}

	n, err := parseNumber(sb.String())
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	return n, nil
}

// Write writes strings and numbers to the [File].
func (f *File) Write(values ...any) error {
	f.Lock()
	defer f.Unlock()

	if f.closed {
		return ErrFileClosed
	}

	if err := f.prepareWrite(); err != nil {
		return err
	}

	for _, v := range values {
		var s string

		switch vv := v.(type) {
		case string:
			s = vv
		case []byte:
			s = string(vv)
		case int:
			s = strconv.Itoa(vv)
		case int64:
			s = strconv.FormatInt(vv, 10)
		case float64:
			s = strconv.FormatFloat(vv, 'g', 14, 64)
		default:
			return fmt.Errorf("(io-write) %w: %T", ErrInvalidValue, v)
		}

		if _, err := f.writer.WriteString(s); err != nil {
			return fmt.Errorf("(io-write) failed to write: %w", err)
		}

		if f.bufMode == BufferNone || (f.bufMode == BufferLine && strings.Contains(s, "\n")) {
			if err := f.writer.Flush(); err != nil {
				return fmt.Errorf("(io-write) failed to flush: %w", err)
			}
		}
	}

	return nil
}

// Seek sets the position of the [File] relative to "set", "cur" or "end" and
// returns the new position. An empty whence is "cur".
func (f *File) Seek(whence string, offset int64) (int64, error) {
	f.Lock()
	defer f.Unlock()

	if f.closed {
		return 0, ErrFileClosed
	}

	var w int
	switch whence {
	case "set":
		w = io.SeekStart
	case "cur", "":
		w = io.SeekCurrent
	case "end":
		w = io.SeekEnd
	default:
		return 0, fmt.Errorf("(io-seek) %w '%s'", ErrInvalidOption, whence)
	}

	if err := f.writer.Flush(); err != nil {
		return 0, fmt.Errorf("(io-seek) failed to flush: %w", err)
	}

	if w == io.SeekCurrent {
		offset -= int64(f.reader.Buffered())
	}

	pos, err := f.file.Seek(offset, w)
	if err != nil {
		return 0, fmt.Errorf("(io-seek) failed to seek: %w", err)
	}
	f.reader.Reset(f.file)

	return pos, nil
}

// SetVBuf sets the buffering of writes to "no", "full" or "line". A size of
// zero or less keeps [DefaultBufferSize].
func (f *File) SetVBuf(mode string, size int) error {
	f.Lock()
	defer f.Unlock()

	if f.closed {
		return ErrFileClosed
	}

	var bufMode BufferMode
	switch mode {
	case "no":
		bufMode = BufferNone
	case "full":
		bufMode = BufferFull
	case "line":
		bufMode = BufferLine
	default:
		return fmt.Errorf("(io-setvbuf) %w '%s'", ErrInvalidOption, mode)
	}

	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("(io-setvbuf) failed to flush: %w", err)
	}

	if size <= 0 {
		size = DefaultBufferSize
	}

	f.writer = bufio.NewWriterSize(f.file, size)
	f.bufMode = bufMode

	return nil
}

// Flush writes any buffered data to the underlying file.
func (f *File) Flush() error {
	f.Lock()
	defer f.Unlock()

	if f.closed {
		return ErrFileClosed
	}

	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("(io-flush) failed to flush: %w", err)
	}

	return nil
}

// Lines returns an iterator over the remaining lines of the [File], without
// their newlines. An error ends the iteration after being yielded.
func (f *File) Lines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			values, err := f.Read("l")
			if err != nil {
				yield("", err)

				return
			}

			line, ok := values[0].(string)
			if !ok {
				return
			}

			if !yield(line, nil) {
				return
			}
		}
	}
}

// Close flushes and closes the [File]. Closing a closed [File] fails with
// [ErrFileClosed].
func (f *File) Close() error {
	f.Lock()
	defer f.Unlock()

	if f.closed {
		return ErrFileClosed
	}
	f.closed = true

	flushErr := f.writer.Flush()

	if err := f.file.Close(); err != nil {
		return fmt.Errorf("(io-close) failed to close: %w", err)
	}

	if flushErr != nil {
		return fmt.Errorf("(io-close) failed to flush: %w", flushErr)
	}

	return nil
}

// prepareRead makes pending writes visible to the following read.
func (f *File) prepareRead() error {
	if f.writer.Buffered() == 0 {
		return nil
	}

	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("(io-read) failed to flush: %w", err)
	}

	return nil
}

// prepareWrite moves the file offset back over data that was read ahead, so
// that a write lands where the caller stopped reading.
func (f *File) prepareWrite() error {
	buffered := f.reader.Buffered()
	if buffered == 0 {
		return nil
	}

	if _, err := f.file.Seek(-int64(buffered), io.SeekCurrent); err != nil {
		return fmt.Errorf("(io-write) failed to seek: %w", err)
	}
	f.reader.Reset(f.file)

	return nil
}
