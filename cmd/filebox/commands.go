package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	stdio "io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertwitch/filebox/internal/filesystem"
	"github.com/desertwitch/filebox/internal/io"
	"github.com/desertwitch/filebox/internal/schema"
	"github.com/desertwitch/filebox/internal/server"
	"github.com/desertwitch/filebox/internal/ui"
	"github.com/dustin/go-humanize"
)

const (
	chunkSize        = 32 * 1024
	defaultHeadLines = 10

	usageMkdir  = "mkdir [-p] <path>"
	usageRemove = "rm [-r] <path>"
)

//nolint:gochecknoglobals
var commands = map[string]command{
	"resolve": {"resolve <path>", "print the contained path of a path", 1, 1, (*App).resolve},
	"ls":      {"ls [path]", "list a directory", 0, 1, (*App).list},
	"names":   {"names [path]", "print the names in a directory, unsorted", 0, 1, (*App).names},
	"stat":    {"stat <path> [attribute]", "print the metadata of a path", 1, 2, (*App).stat},
	"lstat":   {"lstat <path> [attribute]", "print the metadata of a path, not following a final link", 1, 2, (*App).lstat},
	"mkdir":   {usageMkdir, "create a directory, with -p along with its parents", 1, 2, (*App).mkdir},
	"rmdir":   {"rmdir <path>", "remove an empty directory", 1, 1, (*App).rmdir},
	"rm":      {usageRemove, "remove a file, with -r a directory and its content", 1, 2, (*App).remove},
	"mv":      {"mv <old> <new>", "move or rename a path", 2, 2, (*App).move},
	"chmod":   {"chmod <mode> <path>", "change the permissions of a path (octal)", 2, 2, (*App).chmod},
	"touch":   {"touch <path>", "create a file or update its timestamps", 1, 1, (*App).touch},
	"cat":     {"cat <path>", "print the content of a file", 1, 1, (*App).cat},
	"head":    {"head <path> [lines]", "print the first lines of a file (10)", 1, 2, (*App).head},
	"read":    {"read <path> <offset> [bytes]", "print the content of a file from an offset", 2, 3, (*App).read},
	"write":   {"write <path> [text...]", "write text or standard input to a file", 1, -1, (*App).write},
	"sum":     {"sum <pattern>", "print BLAKE3 digests of matching files", 1, 1, (*App).sum},
	"find":    {"find <pattern> [path]", "find elements by name below a directory", 1, 2, (*App).find},
	"glob":    {"glob <pattern>", "print paths matching a pattern", 1, 1, (*App).glob},
	"mime":    {"mime <path>", "print the media type of a file", 1, 1, (*App).mime},
	"browse":  {"browse [path]", "browse the root interactively", 0, 1, (*App).browse},
	"serve":   {"serve", "serve the root read-only over HTTP", 0, 0, (*App).serve},
}

// resolution is the result of the resolve command.
type resolution struct {
	Path     string `json:"path"     yaml:"path"`
	Resolved string `json:"resolved" yaml:"resolved"`
	Relative string `json:"relative" yaml:"relative"`
}

func (a *App) resolve(_ context.Context, args []string) error {
	resolved, err := a.guard.Resolve(args[0])
	if err != nil {
		return err
	}

	res := resolution{
		Path:     args[0],
		Resolved: resolved,
		Relative: a.guard.Relative(resolved),
	}

	return a.output(res, func(w stdio.Writer) error {
		_, err := fmt.Fprintln(w, res.Resolved)

		return err
	})
}

func (a *App) list(_ context.Context, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}

	entries, err := a.fsHandler.List(path)
	if err != nil {
		return err
	}

	return a.output(entries, func(w stdio.Writer) error {
		for _, entry := range entries {
			name := entry.Name
			if entry.IsDir {
				name += "/"
			}

			if _, err := fmt.Fprintf(w, "%-9s %8s  %s  %s\n",
				entry.Mode,
				humanize.Bytes(uint64(max(entry.Size, 0))),
				entry.ModTime.Format("Jan _2 15:04"),
				name,
			); err != nil {
				return err
			}
		}

		return nil
	})
}

func (a *App) stat(_ context.Context, args []string) error {
	attrs, err := a.fsHandler.Attributes(args[0])
	if err != nil {
		return err
	}

	return a.outputAttributes(attrs, args[1:])
}

func (a *App) lstat(_ context.Context, args []string) error {
	attrs, err := a.fsHandler.SymlinkAttributes(args[0])
	if err != nil {
		return err
	}

	return a.outputAttributes(attrs, args[1:])
}

// outputAttributes writes all attributes, or the one named.
func (a *App) outputAttributes(attrs *schema.Attributes, names []string) error {
	if len(names) > 0 {
		value, err := filesystem.AttributeByName(attrs, names[0])
		if err != nil {
			return err
		}

		return a.output(value, func(w stdio.Writer) error {
			_, err := fmt.Fprintln(w, formatAttribute(names[0], value))

			return err
		})
	}

	return a.output(attrs, func(w stdio.Writer) error {
		for _, name := range filesystem.AttributeNames {
			value, _ := filesystem.AttributeByName(attrs, name)

			if _, err := fmt.Fprintf(w, "%-13s %s\n", name+":", formatAttribute(name, value)); err != nil {
				return err
			}
		}

		return nil
	})
}

func (a *App) mkdir(_ context.Context, args []string) error {
	args, parents, err := cutFlag(args, "-p", usageMkdir)
	if err != nil {
		return err
	}

	if parents {
		return a.afs.MkdirAll(args[0], os.FileMode(filesystem.DirPerms))
	}

	return a.fsHandler.Mkdir(args[0])
}

func (a *App) rmdir(_ context.Context, args []string) error {
	return a.fsHandler.Rmdir(args[0])
}

func (a *App) remove(_ context.Context, args []string) error {
	args, recursive, err := cutFlag(args, "-r", usageRemove)
	if err != nil {
		return err
	}

	if recursive {
		return a.afs.RemoveAll(args[0])
	}

	return a.afs.Remove(args[0])
}

func (a *App) move(_ context.Context, args []string) error {
	return a.afs.Rename(args[0], args[1])
}

func (a *App) chmod(_ context.Context, args []string) error {
	mode, err := strconv.ParseUint(args[0], 8, 32)
	if err != nil || mode > uint64(fs.ModePerm) {
		return fmt.Errorf("(app-chmod) %w: invalid mode %s", ErrUsage, args[0])
	}

	return a.afs.Chmod(args[1], fs.FileMode(mode))
}

// names prints the names in a directory in the order the directory returns
// them, without reading any metadata.
func (a *App) names(_ context.Context, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}

	dir, err := a.fsHandler.Dir(path)
	if err != nil {
		return err
	}
	defer dir.Close()

	names := []string{}
	for name, ok := dir.Next(); ok; name, ok = dir.Next() {
		names = append(names, name)
	}
	if err := dir.Err(); err != nil {
		return err
	}

	return a.output(names, func(w stdio.Writer) error {
		for _, name := range names {
			if _, err := fmt.Fprintln(w, name); err != nil {
				return err
			}
		}

		return nil
	})
}

// touch creates a missing file before setting its timestamps. A path outside
// of the root is not missing, so it is never created.
func (a *App) touch(_ context.Context, args []string) error {
	if _, err := a.fsHandler.Attributes(args[0]); schema.KindOf(err) == schema.KindNotFound {
		f, err := a.ioHandler.Open(args[0], "a")
		if err != nil {
			return err
		}

		if err := f.Close(); err != nil {
			return err
		}
	}

	return a.fsHandler.Touch(args[0], nil, nil)
}

func (a *App) cat(_ context.Context, args []string) error {
	f, err := a.ioHandler.Open(args[0], "r")
	if err != nil {
		return err
	}
	defer f.Close()

	slog.Debug("Streaming file", "path", args[0], "handle", io.Type(f))

	for {
		values, err := f.Read(chunkSize)
		if err != nil {
			return err
		}

		chunk, ok := values[0].(string)
		if !ok {
			return nil
		}

		if _, err := stdio.WriteString(a.stdout, chunk); err != nil {
			return fmt.Errorf("(app-cat) failed to write: %w", err)
		}
	}
}

func (a *App) head(_ context.Context, args []string) error {
	limit := defaultHeadLines
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return fmt.Errorf("(app-head) %w: invalid line count %s", ErrUsage, args[1])
		}
		limit = n
	}

	f, err := a.ioHandler.Open(args[0], "r")
	if err != nil {
		return err
	}
	defer f.Close()

	lines := make([]string, 0, limit)
	for line, err := range f.Lines() {
		if err != nil {
			return err
		}
		if len(lines) == limit {
			break
		}
		lines = append(lines, line)
	}

	return a.output(lines, func(w stdio.Writer) error {
		for _, line := range lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}

		return nil
	})
}

// read prints the content of a file from an offset, all of it or up to a
// number of bytes.
func (a *App) read(_ context.Context, args []string) error {
	offset, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || offset < 0 {
		return fmt.Errorf("(app-read) %w: invalid offset %s", ErrUsage, args[1])
	}

	var format any = "a"
	if len(args) > 2 { //nolint:mnd
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 0 {
			return fmt.Errorf("(app-read) %w: invalid byte count %s", ErrUsage, args[2])
		}
		format = n
	}

	f, err := a.ioHandler.Open(args[0], "r")
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek("set", offset); err != nil {
		return err
	}

	values, err := f.Read(format)
	if err != nil {
		return err
	}

	content, _ := values[0].(string)

	if _, err := stdio.WriteString(a.stdout, content); err != nil {
		return fmt.Errorf("(app-read) failed to write: %w", err)
	}

	return nil
}

// write truncates a file and writes either the given text, as a single line,
// or everything read from standard input.
func (a *App) write(_ context.Context, args []string) error {
	f, err := a.ioHandler.Open(args[0], "w")
	if err != nil {
		return err
	}

	if len(args) > 1 {
		err = f.Write(strings.Join(args[1:], " "), "\n")
	} else {
		err = f.SetVBuf("full", chunkSize)
		if err == nil {
			err = a.copyStdin(f.Write)
		}
	}

	if cerr := f.Close(); err == nil {
		err = cerr
	}

	return err
}

func (a *App) copyStdin(write func(values ...any) error) error {
	reader := bufio.NewReader(a.stdin)
	buf := make([]byte, chunkSize)

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if werr := write(buf[:n]); werr != nil {
				return werr
			}
		}

		if errors.Is(err, stdio.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("(app-write) failed to read input: %w", err)
		}
	}
}

func (a *App) sum(ctx context.Context, args []string) error {
	sums, err := a.searchHandler.Sums(ctx, args[0])
	if err != nil {
		return err
	}

	return a.output(sums, func(w stdio.Writer) error {
		for _, s := range sums {
			if _, err := fmt.Fprintf(w, "%s  %s\n", s.Digest, s.Path); err != nil {
				return err
			}
		}

		return nil
	})
}

func (a *App) find(ctx context.Context, args []string) error {
	path := ""
	if len(args) > 1 {
		path = args[1]
	}

	entries, err := a.searchHandler.Find(ctx, path, args[0])
	if err != nil {
		return err
	}

	return a.output(entries, func(w stdio.Writer) error {
		for _, entry := range entries {
			if _, err := fmt.Fprintln(w, entry.Path); err != nil {
				return err
			}
		}

		return nil
	})
}

func (a *App) glob(ctx context.Context, args []string) error {
	matches, err := a.searchHandler.Glob(ctx, args[0])
	if err != nil {
		return err
	}

	return a.output(matches, func(w stdio.Writer) error {
		for _, match := range matches {
			if _, err := fmt.Fprintln(w, match); err != nil {
				return err
			}
		}

		return nil
	})
}

func (a *App) mime(_ context.Context, args []string) error {
	mtype, err := a.fsHandler.MimeType(args[0])
	if err != nil {
		return err
	}

	return a.output(mtype, func(w stdio.Writer) error {
		_, err := fmt.Fprintln(w, mtype)

		return err
	})
}

// browse shows the interactive browser. While it runs, logs are shown inside
// of it instead of on the terminal.
func (a *App) browse(ctx context.Context, args []string) error {
	if len(args) > 0 {
		if err := a.fsHandler.Chdir(args[0]); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	uiHandler := ui.NewHandler(ctx, cancel, a.fsHandler, tea.WithInput(a.stdin), tea.WithOutput(a.stdout))

	if a.logManager != nil {
		if terminal, ok := a.logManager.GetHandler(handlerTerminal); ok {
			a.logManager.RemoveHandler(handlerTerminal)
			defer a.logManager.AddHandler(handlerTerminal, terminal)
		}

		a.logManager.AddHandler(handlerUI, newTintHandler(uiHandler.LogWriter, &logLevel, true))
		defer a.logManager.RemoveHandler(handlerUI)
	}

	if err := uiHandler.Launch(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}

		return err
	}

	return nil
}

func (a *App) serve(ctx context.Context, _ []string) error {
	srv := server.New(a.guard, a.fsHandler, a.searchHandler, a.metrics)

	return srv.Serve(ctx, a.cfg.Listen)
}

// formatAttribute renders an attribute value for text output.
func formatAttribute(name string, value any) string {
	switch v := value.(type) {
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case int64:
		if name == "size" {
			return fmt.Sprintf("%d (%s)", v, humanize.IBytes(uint64(max(v, 0))))
		}

		return fmt.Sprintf("%d", v)
	default:
		return fmt.Sprint(v)
	}
}
