// Package tui is the interactive terminal front end of a stream.Viewer.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/turbocompute/gpulogs/internal/constants"
	apperrors "github.com/turbocompute/gpulogs/internal/errors"
	"github.com/turbocompute/gpulogs/internal/stream"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// ChangedMsg tells the model the viewer has something new to show.
type ChangedMsg struct{}

// ScrollMsg asks the model to move the viewport to its end.
type ScrollMsg struct{}

type exportedMsg struct {
	location string
	err      error
}

type mode int

const (
	modeNormal mode = iota
	modeFilter
	modeSearch
)

// Model renders one viewer and maps keys onto its operations.
type Model struct {
	ctx      context.Context
	viewer   *stream.Viewer
	sink     stream.BlobSink
	renderer *renderer
	styles   styles

	viewport    viewport.Model
	filterInput textinput.Model
	searchInput textinput.Model
	help        help.Model

	mode    mode
	restore string
	width   int
	height  int
	status  string
	visible int
}

// NewModel creates the model for viewer. sink may be nil, which disables export.
func NewModel(ctx context.Context, viewer *stream.Viewer, sink stream.BlobSink, theme Theme) *Model {
	filter := textinput.New()
	filter.Prompt = "filter: "
	filter.Placeholder = "substring"
	filter.CharLimit = constants.FilterCharLimit

	search := textinput.New()
	search.Prompt = "search: "
	search.Placeholder = "highlight"
	search.CharLimit = constants.FilterCharLimit

	return &Model{
		ctx:         ctx,
		viewer:      viewer,
		sink:        sink,
		renderer:    newRenderer(theme),
		styles:      newStyles(theme),
		viewport:    viewport.New(0, 0),
		filterInput: filter,
		searchInput: search,
		help:        help.New(),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return func() tea.Msg { return ChangedMsg{} }
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-constants.ViewerChromeHeight)
		m.help.Width = msg.Width
		m.refresh()
		return m, nil

	case ChangedMsg:
		m.refresh()
		return m, nil

	case ScrollMsg:
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.status = "export failed: " + apperrors.GetErrorMessage(msg.err)
		} else {
			m.status = "exported to " + msg.location
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode != modeNormal {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Pause):
		m.viewer.TogglePause()
	case key.Matches(msg, keys.Clear):
		m.viewer.Clear()
		m.status = "cleared"
	case key.Matches(msg, keys.Export):
		return m, m.export()
	case key.Matches(msg, keys.Reconnect):
		m.viewer.Reconnect()
		m.status = "reconnecting"
	case key.Matches(msg, keys.AutoScroll):
		m.viewer.SetAutoScroll(!m.viewer.AutoScroll())
	case key.Matches(msg, keys.Filter):
		return m, m.focus(modeFilter)
	case key.Matches(msg, keys.Search):
		return m, m.focus(modeSearch)
	case key.Matches(msg, keys.Top):
		m.viewport.GotoTop()
	case key.Matches(msg, keys.Bottom):
		m.viewport.GotoBottom()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleInputKey edits the focused input. Edits apply as they are typed;
// esc restores the value the input had when it was focused.
func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	input := m.input()

	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, keys.Accept):
		m.blur()
		return m, nil
	case key.Matches(msg, keys.Cancel):
		input.SetValue(m.restore)
		m.apply(m.restore)
		m.blur()
		return m, nil
	}

	var cmd tea.Cmd
	*input, cmd = input.Update(msg)
	m.apply(input.Value())
	return m, cmd
}

func (m *Model) focus(next mode) tea.Cmd {
	m.mode = next
	m.status = ""
	m.restore = m.appliedText()
	input := m.input()
	input.SetValue(m.restore)
	input.CursorEnd()
	return input.Focus()
}

func (m *Model) blur() {
	m.input().Blur()
	m.mode = modeNormal
}

func (m *Model) input() *textinput.Model {
	if m.mode == modeSearch {
		return &m.searchInput
	}
	return &m.filterInput
}

func (m *Model) appliedText() string {
	f := m.viewer.Filter()
	if m.mode == modeSearch {
		return f.SearchText
	}
	return f.FilterText
}

func (m *Model) apply(text string) {
	if m.mode == modeSearch {
		m.viewer.SetSearchText(text)
		return
	}
	m.viewer.SetFilterText(text)
}

func (m *Model) export() tea.Cmd {
	if m.sink == nil {
		m.status = "export is not configured"
		return nil
	}
	m.status = "exporting..."
	ctx, viewer, sink := m.ctx, m.viewer, m.sink
	return func() tea.Msg {
		location, err := viewer.Export(ctx, sink)
		return exportedMsg{location: location, err: err}
	}
}

func (m *Model) refresh() {
	lines := m.viewer.Lines()
	m.visible = len(lines)
	m.viewport.SetContent(m.renderer.Render(lines))
}

// View implements tea.Model.
func (m *Model) View() string {
	var sb strings.Builder
	sb.WriteString(m.header())
	sb.WriteByte('\n')
	sb.WriteString(m.viewport.View())
	sb.WriteByte('\n')
	sb.WriteString(m.inputLine())
	sb.WriteByte('\n')
	sb.WriteString(m.styles.statusBar.Width(m.width).Render(m.status))
	sb.WriteByte('\n')
	sb.WriteString(m.help.View(keys))
	return sb.String()
}

func (m *Model) header() string {
	target := m.viewer.TargetID()
	if target == "" {
		target = constants.ExportAllTargets
	}

	parts := []string{
		constants.ProjectName + " " + target,
		m.stateBadge(),
	}
	if m.viewer.Paused() {
		parts = append(parts, m.styles.paused.Render(fmt.Sprintf("paused (%d staged)", m.viewer.Pending())))
	}
	parts = append(parts, fmt.Sprintf("%d/%d lines", m.visible, m.viewer.Capacity()))
	if m.viewer.AutoScroll() {
		parts = append(parts, "auto-scroll")
	}
	return strings.Join(parts, "  ")
}

func (m *Model) stateBadge() string {
	state := m.viewer.State()
	label := "● " + state.String()
	switch state {
	case stream.Connected:
		return m.styles.connected.Render(label)
	case stream.Connecting:
		return m.styles.connecting.Render(label)
	default:
		return m.styles.disconnected.Render(label)
	}
}

func (m *Model) inputLine() string {
	switch m.mode {
	case modeFilter:
		return m.filterInput.View()
	case modeSearch:
		return m.searchInput.View()
	}

	f := m.viewer.Filter()
	var parts []string
	if f.FilterText != "" {
		parts = append(parts, "filter: "+f.FilterText)
	}
	if f.SearchText != "" {
		parts = append(parts, "search: "+f.SearchText)
	}
	return m.styles.help.Render(strings.Join(parts, "  "))
}
