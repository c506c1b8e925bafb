package main

import (
	"context"
	"encoding/json"
	"fmt"
	stdio "io"
	"sort"
	"strings"

	"github.com/desertwitch/filebox/internal/aferofs"
	"github.com/desertwitch/filebox/internal/canonical"
	"github.com/desertwitch/filebox/internal/configuration"
	"github.com/desertwitch/filebox/internal/filesystem"
	"github.com/desertwitch/filebox/internal/io"
	"github.com/desertwitch/filebox/internal/metrics"
	"github.com/desertwitch/filebox/internal/pathing"
	"github.com/desertwitch/filebox/internal/search"
	"github.com/desertwitch/filebox/internal/syscalls"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// command is a subcommand of the program.
type command struct {
	usage   string
	summary string
	minArgs int
	maxArgs int // -1 for any
	run     func(a *App, ctx context.Context, args []string) error
}

// App holds the handlers of a file box established for a single invocation.
type App struct {
	cfg    *configuration.Config
	format string

	guard         *pathing.Guard
	fsHandler     *filesystem.Handler
	ioHandler     *io.Handler
	searchHandler *search.Handler
	afs           *aferofs.Fs
	metrics       *metrics.Metrics

	logManager *SlogManager
	stdin      stdio.Reader
	stdout     stdio.Writer
}

// NewApp returns a pointer to a new [App], with the containment guard for the
// configured root established. The log manager may be nil.
func NewApp(cfg *configuration.Config, format string, logManager *SlogManager, stdin stdio.Reader, stdout stdio.Writer) (*App, error) {
	switch format {
	case formatText, formatJSON, formatYAML:
	default:
		return nil, fmt.Errorf("(app) %w: %s", ErrInvalidFormat, format)
	}

	osProvider := &syscalls.OS{}
	unixProvider := &syscalls.Unix{}
	metricsHandler := metrics.New()

	canonHandler := canonical.NewCanonicalizer(osProvider, unixProvider, cfg.Limits())

	guard, err := pathing.NewGuard(cfg.Root, canonHandler, osProvider, pathing.Options{
		RevealContainment: cfg.RevealContainment,
		Observer:          metricsHandler,
	})
	if err != nil {
		return nil, fmt.Errorf("(app) failed to establish root: %w", err)
	}

	ioHandler := io.NewHandler(guard, osProvider, io.Options{Hardened: cfg.Hardened})

	return &App{
		cfg:           cfg,
		format:        format,
		guard:         guard,
		fsHandler:     filesystem.NewHandler(guard, osProvider, unixProvider),
		ioHandler:     ioHandler,
		searchHandler: search.NewHandler(guard, ioHandler, search.Options{}),
		afs:           aferofs.New(guard),
		metrics:       metricsHandler,
		logManager:    logManager,
		stdin:         stdin,
		stdout:        stdout,
	}, nil
}

// Run runs the command named by the first argument.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("(app) %w: no command given", ErrUsage)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("(app) %w: %s", ErrUnknownCommand, args[0])
	}

	cmdArgs := args[1:]
	if len(cmdArgs) < cmd.minArgs || (cmd.maxArgs >= 0 && len(cmdArgs) > cmd.maxArgs) {
		return fmt.Errorf("(app) %w: filebox %s", ErrUsage, cmd.usage)
	}

	return cmd.run(a, ctx, cmdArgs)
}

// cutFlag reports whether args start with a flag, returning the rest. A
// command taking a flag needs exactly one argument besides it.
func cutFlag(args []string, flag string, usage string) ([]string, bool, error) {
	set := len(args) > 0 && args[0] == flag
	if set {
		args = args[1:]
	}

	if len(args) != 1 {
		return nil, false, fmt.Errorf("(app) %w: filebox %s", ErrUsage, usage)
	}

	return args, set, nil
}

// output writes a value in the configured format. In text format, the given
// function renders it instead.
func (a *App) output(v any, text func(w stdio.Writer) error) error {
	switch a.format {
	case formatJSON:
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("(app-output) failed to encode json: %w", err)
		}

		return nil

	case formatYAML:
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2) //nolint:mnd

		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("(app-output) failed to encode yaml: %w", err)
		}

		if err := enc.Close(); err != nil {
			return fmt.Errorf("(app-output) failed to encode yaml: %w", err)
		}

		return nil

	default:
		return text(a.stdout)
	}
}

// usage returns the help text listing all commands.
func usage() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Usage: filebox [flags] <command> [args]\n\nCommands:\n")

	for _, name := range names {
		fmt.Fprintf(&b, "  %-28s %s\n", commands[name].usage, commands[name].summary)
	}

	return b.String()
}
