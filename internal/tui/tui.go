// Package tui is the interactive result browser: a text input driving
// debounced searches, a scrolling result pane and a status bar.
package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bastiangx/relist/pkg/listing"
)

var (
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	statusStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	spinnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
)

// stateChanged signals that the controller's visible state moved and the
// view should re-read it. It carries no payload, handlers pull fresh
// state from the controller.
type stateChanged struct{}

// Model is the root Bubble Tea model. It holds no list data of its own,
// every View reads through the controller.
type Model struct {
	ctrl *listing.Controller[string]

	input textinput.Model
	spin  spinner.Model

	cursor int
	offset int
	width  int
	height int
	ready  bool
	paged  bool

	spinning bool
}

// NewModel builds the browser model around an existing controller. paged
// should be true for sources served through a loader; local collections
// keep their more flag raised but never page.
func NewModel(ctrl *listing.Controller[string], paged bool) Model {
	ti := textinput.New()
	ti.Placeholder = "type to search..."
	ti.CharLimit = 256
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return Model{
		ctrl:  ctrl,
		input: ti,
		spin:  s,
		paged: paged,
	}
}

// Run wires a controller to a fresh program and blocks until the user
// quits. Controller notifications are coalesced through a small buffered
// channel: callbacks can fire on the event loop goroutine itself (every
// synchronous mutator notifies inline), so a direct p.Send would
// deadlock against Update.
func Run(ctrl *listing.Controller[string], paged bool) error {
	p := tea.NewProgram(NewModel(ctrl, paged), tea.WithAltScreen())

	changes := make(chan struct{}, 16)
	unsubscribe := ctrl.Subscribe(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	go func() {
		for range changes {
			p.Send(stateChanged{})
		}
	}()

	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.ensureCursorVisible()
		return m, nil

	case stateChanged:
		m.restoreCursor()
		return m, m.maybeSpin()

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKeyMsg routes keys. Letters always land in the text input, so
// navigation and actions live on arrows, Enter and ctrl chords.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		if m.input.Value() == "" {
			return m, tea.Quit
		}
		m.input.SetValue("")
		m.ctrl.Search("")
		m.cursor, m.offset = 0, 0
		return m, m.maybeSpin()
	case tea.KeyEnter:
		items := m.ctrl.Items()
		if m.cursor < len(items) {
			m.ctrl.ToggleSelection(items[m.cursor])
		}
		return m, nil
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
			m.ensureCursorVisible()
		}
		return m, nil
	case tea.KeyDown:
		return m.moveDown()
	case tea.KeyPgUp:
		m.cursor -= m.listHeight()
		if m.cursor < 0 {
			m.cursor = 0
		}
		m.ensureCursorVisible()
		return m, nil
	case tea.KeyPgDown:
		last := len(m.ctrl.Items()) - 1
		m.cursor += m.listHeight()
		if m.cursor > last {
			m.cursor = last
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		m.ensureCursorVisible()
		return m, nil
	}

	switch msg.String() {
	case "ctrl+a":
		m.ctrl.SelectAll()
		return m, nil
	case "ctrl+x":
		m.ctrl.DeselectAll()
		return m, nil
	case "ctrl+r":
		if m.ctrl.Err() != nil {
			m.ctrl.Retry()
		} else {
			m.ctrl.Refresh()
		}
		return m, m.maybeSpin()
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if value := m.input.Value(); value != before {
		m.ctrl.Search(value)
		m.cursor, m.offset = 0, 0
		return m, tea.Batch(cmd, m.maybeSpin())
	}
	return m, cmd
}

// moveDown advances the cursor, loading the next page when the cursor
// runs off the end of a paged result set.
func (m Model) moveDown() (tea.Model, tea.Cmd) {
	items := m.ctrl.Items()
	if m.cursor < len(items)-1 {
		m.cursor++
		m.ensureCursorVisible()
		return m, nil
	}
	if m.paged && m.ctrl.HasMorePages() && !m.busy() {
		m.ctrl.LoadMore()
		return m, m.maybeSpin()
	}
	return m, nil
}

// busy covers both in-flight fetches and a debounce window still waiting
// to fire (typed value not yet the applied query).
func (m Model) busy() bool {
	return m.ctrl.IsLoading() || m.ctrl.IsLoadingMore() ||
		m.input.Value() != m.ctrl.SearchQuery()
}

// maybeSpin starts the spinner tick chain unless one is already running.
func (m *Model) maybeSpin() tea.Cmd {
	if m.spinning || !m.busy() {
		return nil
	}
	m.spinning = true
	return m.spin.Tick
}

func (m Model) listHeight() int {
	h := m.height - 3
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) ensureCursorVisible() {
	height := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+height {
		m.offset = m.cursor - height + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// restoreCursor re-finds the item the cursor sat on after the visible
// list changed, falling back to clamping.
func (m *Model) restoreCursor() {
	items := m.ctrl.Items()
	if len(items) == 0 {
		m.cursor, m.offset = 0, 0
		return
	}
	if m.cursor >= len(items) {
		m.cursor = len(items) - 1
	}
	m.ensureCursorVisible()
}

// View renders the input line, the result window and the status bar.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	items := m.ctrl.Items()
	height := m.listHeight()
	end := m.offset + height
	if end > len(items) {
		end = len(items)
	}

	rendered := 0
	if len(items) == 0 {
		b.WriteString(statusStyle.Render("  no matches"))
		b.WriteString("\n")
		rendered = 1
	}
	for i := m.offset; i < end; i++ {
		item := items[i]
		marker := "  "
		if m.ctrl.IsSelected(item) {
			marker = "* "
		}
		line := truncateRunes(marker+item, m.width)
		switch {
		case i == m.cursor:
			line = cursorStyle.Render(line)
		case marker == "* ":
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
		rendered++
	}
	for ; rendered < height; rendered++ {
		b.WriteString("\n")
	}

	b.WriteString(m.statusLine(len(items)))
	return b.String()
}

func (m Model) statusLine(count int) string {
	if err := m.ctrl.Err(); err != nil {
		return errorStyle.Render(truncateRunes(fmt.Sprintf("error: %v (ctrl+r to retry)", err), m.width))
	}

	status := fmt.Sprintf("%d items", count)
	if selected := m.ctrl.SelectedCount(); selected > 0 {
		status += fmt.Sprintf(" · %d selected", selected)
	}
	if m.paged && m.ctrl.HasMorePages() {
		status += " · more"
	}
	if m.busy() {
		status = m.spin.View() + " " + status
	}
	return statusStyle.Render(truncateRunes(status, m.width))
}

// truncateRunes trims a line to maxRunes, adding "..." when it was cut.
func truncateRunes(s string, maxRunes int) string {
	if maxRunes < 1 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
