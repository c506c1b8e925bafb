// Command filebox gives confined access to a directory tree: every path it is
// given is resolved inside of a configured root, and anything that would lead
// outside of it is refused.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/desertwitch/filebox/internal/configuration"
)

const (
	stackTraceBufMax = 1 << 24
)

//nolint:gochecknoglobals
var (
	ExitCode = 0
	Version  string

	logLevel slog.LevelVar

	rootPath   = flag.String("root", "", "root directory to confine all paths to")
	configFile = flag.String("config", "", "configuration file to read (.env format)")
	format     = flag.String("format", formatText, "output format: text, json or yaml")
	reveal     = flag.Bool("reveal", false, "report paths outside of the root as permission denied")
	hardened   = flag.Bool("hardened", false, "open files through an os.Root of the root")
	listen     = flag.String("listen", "", "address to serve on (default "+configuration.DefaultListen+")")
	debug      = flag.Bool("debug", false, "enable debug logging")
	version    = flag.Bool("version", false, "print the version and exit")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile = flag.String("memprofile", "", "write memory profile to this file")
)

func setupLogging() *SlogManager {
	if *debug {
		logLevel.Set(slog.LevelDebug)
	}

	manager := NewSlogManager()
	manager.AddHandler(handlerTerminal, newTintHandler(os.Stderr, &logLevel, false))
	slog.SetDefault(slog.New(manager))

	return manager
}

func setupSignalHandlers(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigChan
		cancel()
	}()

	sigChan2 := make(chan os.Signal, 1)
	signal.Notify(sigChan2, syscall.SIGUSR1)
	go func() {
		for range sigChan2 {
			buf := make([]byte, stackTraceBufMax)
			stacklen := runtime.Stack(buf, true)
			os.Stderr.Write(buf[:stacklen])
		}
	}()
}

// loadConfig reads the configuration file and the environment, then applies
// the flags that were given on the command line.
func loadConfig() (*configuration.Config, error) {
	configHandler := configuration.NewHandler(&configuration.GodotenvProvider{})

	var files []string
	if *configFile != "" {
		files = append(files, *configFile)
	}

	cfg, err := configHandler.Load(files...)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			cfg.Root = *rootPath
		case "reveal":
			cfg.RevealContainment = *reveal
		case "hardened":
			cfg.Hardened = *hardened
		case "listen":
			cfg.Listen = *listen
		}
	})

	if cfg.Root != "" && !filepath.IsAbs(cfg.Root) {
		abs, err := filepath.Abs(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("(main) failed to make root absolute: %w", err)
		}
		cfg.Root = abs
	}

	return cfg, nil
}

func main() {
	defer func() {
		os.Exit(ExitCode)
	}()

	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage())
		fmt.Fprintln(flag.CommandLine.Output(), "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Fprintln(os.Stdout, "filebox", Version)

		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logManager := setupLogging()
	setupSignalHandlers(cancel)

	observer := newUsageObserver(ctx)
	defer observer.Stop()

	cpuProfiler := NewCPUProfiler(ctx, *cpuprofile)
	defer cpuProfiler.Stop()

	allocProfiler := NewAllocProfiler(ctx, *memprofile)
	defer allocProfiler.Stop()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load the configuration.", "err", err)
		ExitCode = 1

		return
	}

	app, err := NewApp(cfg, *format, logManager, os.Stdin, os.Stdout)
	if err != nil {
		slog.Error("Failed to establish the file box.", "root", cfg.Root, "err", err)
		ExitCode = 1

		return
	}

	if err := app.Run(ctx, flag.Args()); err != nil {
		if errors.Is(err, ErrUsage) || errors.Is(err, ErrUnknownCommand) {
			slog.Error("Invalid command.", "err", err)
			flag.Usage()
			ExitCode = 2 //nolint:mnd

			return
		}

		slog.Error("Command failed.", "err", err)
		ExitCode = 1
	}
}
