// Package ui implements a command-line browser for a file box using [tea].
// Every directory change goes through the containment guard, so the browser
// cannot be used to leave the root.
package ui

import (
	"context"
	"fmt"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertwitch/filebox/internal/schema"
)

type browserProvider interface {
	Chdir(path string) error
	CurrentDir() string
	List(path string) ([]schema.Entry, error)
}

// Handler is the principal implementation of a user interface [Handler].
type Handler struct {
	fsHandler browserProvider
	program   *tea.Program

	LogWriter *TeaLogWriter

	Ready  atomic.Bool
	Failed atomic.Bool
}

// NewHandler returns a pointer to a new user interface [Handler], browsing the
// working directory of the given handler.
func NewHandler(ctx context.Context, cancel context.CancelFunc, fsHandler browserProvider, opts ...tea.ProgramOption) *Handler {
	handler := &Handler{
		fsHandler: fsHandler,
	}

	model := NewTeaModel(handler, fsHandler, cancel)
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)

	handler.program = tea.NewProgram(model, opts...)
	handler.LogWriter = NewTeaLogWriter(handler.program)

	return handler
}

// Launch starts the command-line user interface (the [tea.Program]) and
// blocks until it is quit.
func (uiHandler *Handler) Launch() error {
	defer uiHandler.LogWriter.Stop()

	if _, err := uiHandler.program.Run(); err != nil {
		uiHandler.Failed.Store(true)

		return fmt.Errorf("(ui) %w", err)
	}

	return nil
}

// Send sends a [tea.Msg] to the running [tea.Program].
func (uiHandler *Handler) Send(msg tea.Msg) {
	uiHandler.program.Send(msg)
}
