// Package tui implements the live status dashboard behind
// "agentq status --watch".
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/agentq/internal/status"
)

// DefaultRefresh is how often the dashboard rebuilds its snapshot.
const DefaultRefresh = 2 * time.Second

// Snapshotter builds status snapshots. *status.Aggregator implements it.
type Snapshotter interface {
	Snapshot() (*status.Snapshot, error)
}

var (
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	eventStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED"))
)

// Model is the bubbletea model for the dashboard.
type Model struct {
	source     Snapshotter
	refresh    time.Duration
	staleAfter time.Duration
	now        func() time.Time

	spinner   spinner.Model
	snap      *status.Snapshot
	err       error
	loading   bool
	lastEvent string
	width     int
	height    int
}

// NewModel returns a dashboard over source.
func NewModel(source Snapshotter, refresh, staleAfter time.Duration) Model {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		source:     source,
		refresh:    refresh,
		staleAfter: staleAfter,
		now:        time.Now,
		spinner:    sp,
		loading:    true,
	}
}

// Init starts the spinner and the first load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m Model) load() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		snap, err := source.Snapshot()
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, m.load()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case snapshotMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.snap = msg.snap
		}
		return m, m.tick()

	case tickMsg:
		m.loading = true
		return m, m.load()

	case busEventMsg:
		m.lastEvent = fmt.Sprintf("%s %s", msg.event.Timestamp().Format("15:04:05"), msg.event.EventType())
		m.loading = true
		return m, m.load()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	var b strings.Builder

	if m.snap == nil {
		if m.err != nil {
			b.WriteString(errorStyle.Render("error: " + m.err.Error()))
			b.WriteString("\n")
		} else {
			b.WriteString(m.spinner.View() + " loading queue status...\n")
		}
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	b.WriteString(status.Table(m.snap, status.RenderOptions{Now: m.now(), StaleAfter: m.staleAfter}, true))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render("refresh failed: " + m.err.Error()))
		b.WriteString("\n")
	}
	if m.lastEvent != "" {
		b.WriteString(eventStyle.Render("last event: " + m.lastEvent))
		b.WriteString("\n")
	}

	indicator := " "
	if m.loading {
		indicator = m.spinner.View()
	}
	b.WriteString(indicator + " " + helpStyle.Render(fmt.Sprintf("refresh every %s  r refresh  q quit", m.refresh)))
	return b.String()
}
