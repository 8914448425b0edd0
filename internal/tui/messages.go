package tui

import (
	"time"

	"github.com/Iron-Ham/agentq/internal/event"
	"github.com/Iron-Ham/agentq/internal/status"
)

// snapshotMsg carries a freshly built snapshot or the error building it.
type snapshotMsg struct {
	snap *status.Snapshot
	err  error
}

// tickMsg triggers a periodic refresh.
type tickMsg time.Time

// busEventMsg forwards a queue event published while the dashboard runs.
type busEventMsg struct {
	event event.Event
}
