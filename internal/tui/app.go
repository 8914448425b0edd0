package tui

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/agentq/internal/event"
)

// App wraps the bubbletea program.
type App struct {
	program *tea.Program
	model   Model
	bus     *event.Bus
}

// New creates a dashboard. When bus is non-nil, events published on it
// trigger an immediate refresh.
func New(source Snapshotter, bus *event.Bus, refresh, staleAfter time.Duration) *App {
	return &App{
		model: NewModel(source, refresh, staleAfter),
		bus:   bus,
	}
}

// Run starts the dashboard and blocks until the user quits.
func (a *App) Run() error {
	a.program = tea.NewProgram(a.model, tea.WithAltScreen())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)
	go func() {
		if _, ok := <-sigChan; ok {
			a.program.Send(tea.Quit())
		}
	}()

	if a.bus != nil {
		id := a.bus.SubscribeAll(func(e event.Event) {
			a.program.Send(busEventMsg{event: e})
		})
		defer a.bus.Unsubscribe(id)
	}

	_, err := a.program.Run()
	return err
}
