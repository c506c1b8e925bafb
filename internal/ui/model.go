package ui

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertwitch/filebox/internal/schema"
	"github.com/dustin/go-humanize"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	maxLogs       = 100
)

//nolint:gochecknoglobals
var (
	// titleStyle defines the style for a panel's title.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	// borderStyle defines the style for a panel's borders.
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4"))

	// selectedStyle defines the style of the entry under the cursor.
	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	// dirStyle defines the style of directory entries.
	dirStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5FAFFF"))

	// statusStyle defines the style for the status line.
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Padding(0, 1)

	// helpStyle defines the style for the help panel's text.
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(0, 1)
)

// dirMsg is a [tea.Msg] carrying a fresh listing of the working directory.
// From is the directory that was left to get there, if any.
type dirMsg struct {
	dir     string
	from    string
	entries []schema.Entry
	err     error
}

// chdirFailedMsg is a [tea.Msg] reporting a refused directory change. The
// working directory is left as it was.
type chdirFailedMsg struct {
	err error
}

// TeaModel is the principal [tea.Model] for the command-line user interface.
type TeaModel struct {
	width  int
	height int

	cancel context.CancelFunc

	uiHandler *Handler
	fsHandler browserProvider

	dir     string
	entries []schema.Entry
	cursor  int
	offset  int
	status  string

	logsViewport viewport.Model
	logs         []string

	ready bool
}

// NewTeaModel returns an initial new [TeaModel].
func NewTeaModel(uiHandler *Handler, fsHandler browserProvider, cancel context.CancelFunc) TeaModel {
	m := TeaModel{
		width:        defaultWidth,
		height:       defaultHeight,
		cancel:       cancel,
		uiHandler:    uiHandler,
		fsHandler:    fsHandler,
		dir:          fsHandler.CurrentDir(),
		logsViewport: viewport.New(defaultWidth-2, 0),
		logs:         make([]string, 0, maxLogs),
	}
	m.resize()

	return m
}

// Init initializes the model within a [tea.Program].
func (m TeaModel) Init() tea.Cmd {
	return loadDir(m.fsHandler, "")
}

// loadDir produces a [tea.Cmd] listing the working directory.
func loadDir(fsHandler browserProvider, from string) tea.Cmd {
	return func() tea.Msg {
		dir := fsHandler.CurrentDir()
		entries, err := fsHandler.List(strings.TrimPrefix(dir, "/"))

		return dirMsg{
			dir:     dir,
			from:    from,
			entries: entries,
			err:     err,
		}
	}
}

// changeDir produces a [tea.Cmd] moving the working directory to a path
// relative to the root and listing it.
func changeDir(fsHandler browserProvider, target string) tea.Cmd {
	return func() tea.Msg {
		from := fsHandler.CurrentDir()

		if err := fsHandler.Chdir(target); err != nil {
			return chdirFailedMsg{err: err}
		}

		return loadDir(fsHandler, from)()
	}
}

// Update is the principal message handling method of the model.
// It sets the internal state of the model, for later rendering.
//
//nolint:ireturn
func (m TeaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}

			return m, tea.Quit
		case "q":
			return m, tea.Quit
		case "up", "k":
			m.moveCursor(-1)
		case "down", "j":
			m.moveCursor(1)
		case "home", "g":
			m.moveCursor(-len(m.entries))
		case "end", "G":
			m.moveCursor(len(m.entries))
		case "enter", "right", "l":
			cmds = append(cmds, m.descend())
		case "backspace", "left", "h":
			cmds = append(cmds, m.ascend())
		case "r":
			cmds = append(cmds, loadDir(m.fsHandler, ""))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case dirMsg:
		m.dir = msg.dir
		m.entries = msg.entries
		m.cursor = 0
		m.offset = 0
		m.status = ""

		if msg.err != nil {
			m.status = msg.err.Error()
		}

		if msg.from != "" {
			m.selectName(path.Base(msg.from))
		}

		if !m.ready {
			m.ready = true
			if m.uiHandler != nil {
				m.uiHandler.Ready.Store(true)
			}
		}

	case chdirFailedMsg:
		m.status = msg.err.Error()

	case LogMsg:
		if len(m.logs) >= maxLogs {
			m.logs = m.logs[1:]
		}
		m.logs = append(m.logs, string(msg))
		m.refreshLogs()
	}

	m.logsViewport, cmd = m.logsViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// descend returns the [tea.Cmd] entering the entry under the cursor. Symbolic
// links are handed to the guard like any other name, which refuses them when
// they do not lead to a directory inside of the root.
func (m *TeaModel) descend() tea.Cmd {
	if len(m.entries) == 0 {
		return nil
	}

	entry := m.entries[m.cursor]
	if !entry.IsDir && entry.Mode != "link" {
		m.status = entry.Name + " is not a directory"

		return nil
	}

	return changeDir(m.fsHandler, entry.Path)
}

// ascend returns the [tea.Cmd] moving to the parent directory, or nil at the
// root, which cannot be left.
func (m *TeaModel) ascend() tea.Cmd {
	if m.dir == "/" {
		m.status = "already at the root"

		return nil
	}

	return changeDir(m.fsHandler, strings.TrimPrefix(path.Dir(m.dir), "/"))
}

func (m *TeaModel) moveCursor(delta int) {
	if len(m.entries) == 0 {
		return
	}

	m.cursor = min(max(m.cursor+delta, 0), len(m.entries)-1)

	rows := m.listRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	} else if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

func (m *TeaModel) selectName(name string) {
	for i, entry := range m.entries {
		if entry.Name == name {
			m.moveCursor(i - m.cursor)

			return
		}
	}
}

// listRows is the amount of entries fitting into the listing panel, which
// takes about 60% of the height.
func (m *TeaModel) listRows() int {
	return max(m.height*3/5-3, 1) //nolint:mnd
}

func (m *TeaModel) resize() {
	m.logsViewport.Width = m.width - 2
	m.logsViewport.Height = max(m.height-m.listRows()-8, 1) //nolint:mnd
	m.refreshLogs()
}

func (m *TeaModel) refreshLogs() {
	if len(m.logs) == 0 {
		return
	}

	logs := lipgloss.NewStyle().
		Width(m.logsViewport.Width).
		Render(strings.Join(m.logs, "\n"))

	m.logsViewport.SetContent(logs)
	m.logsViewport.GotoBottom()
}

// View is the principal rendering function of the model.
func (m TeaModel) View() string {
	if !m.ready {
		return "Loading the browser..."
	}

	contentWidth := m.width - 2

	listSection := borderStyle.
		Width(contentWidth).
		Render(
			lipgloss.JoinVertical(
				lipgloss.Left,
				titleStyle.Width(contentWidth).Render(m.dir),
				m.formatEntries(),
			),
		)

	logsSection := borderStyle.
		Width(contentWidth).
		Render(
			lipgloss.JoinVertical(
				lipgloss.Left,
				titleStyle.Width(contentWidth).Render("Logs"),
				lipgloss.NewStyle().Width(contentWidth).Render(m.logsViewport.View()),
			),
		)

	helpSection := helpStyle.
		Width(contentWidth).
		Render("↑/↓: move • enter: open • backspace: up • r: reload • q: quit")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		listSection,
		statusStyle.Width(contentWidth).Render(m.status),
		logsSection,
		helpSection,
	)
}

// formatEntries renders the visible part of the listing.
func (m TeaModel) formatEntries() string {
	if len(m.entries) == 0 {
		return "(empty)"
	}

	end := min(m.offset+m.listRows(), len(m.entries))

	lines := make([]string, 0, end-m.offset)
	for i := m.offset; i < end; i++ {
		entry := m.entries[i]

		name := entry.Name
		size := humanize.Bytes(uint64(max(entry.Size, 0)))
		if entry.IsDir {
			name += "/"
			size = "-"
		}

		line := fmt.Sprintf("%-9s %10s  %s", entry.Mode, size, name)

		switch {
		case i == m.cursor:
			line = selectedStyle.Render("> " + line)
		case entry.IsDir:
			line = "  " + dirStyle.Render(line)
		default:
			line = "  " + line
		}

		lines = append(lines, line)
	}

	return strings.Join(lines, "\n")
}
