package scaling

import (
	"sync"

	"github.com/Iron-Ham/agentq/internal/event"
	"github.com/Iron-Ham/agentq/internal/status"
)

// Monitor evaluates a Policy whenever a status snapshot is published on the
// bus and hands non-trivial decisions to its handlers.
type Monitor struct {
	mu       sync.Mutex
	bus      *event.Bus
	policy   *Policy
	handlers []func(Decision)
	subID    string

	// workers is maintained by the caller through SetWorkers.
	workers int
}

// NewMonitor creates a Monitor for a pool currently running workers.
func NewMonitor(bus *event.Bus, policy *Policy, workers int) *Monitor {
	return &Monitor{
		bus:     bus,
		policy:  policy,
		workers: workers,
	}
}

// OnDecision registers a callback invoked for every decision other than
// ActionNone. Handlers run on the publishing goroutine.
func (m *Monitor) OnDecision(handler func(Decision)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

// SetWorkers updates the worker count known to the monitor. Call it after
// the pool actually changes size.
func (m *Monitor) SetWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers = n
}

// Workers returns the worker count known to the monitor.
func (m *Monitor) Workers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workers
}

// Start subscribes to status snapshots. It returns immediately.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subID != "" {
		return
	}
	m.subID = m.bus.Subscribe(event.TypeStatusPublished, m.onStatus)
}

// Stop unsubscribes from the bus. Safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	subID := m.subID
	m.subID = ""
	m.mu.Unlock()

	if subID != "" {
		m.bus.Unsubscribe(subID)
	}
}

func (m *Monitor) onStatus(e event.Event) {
	se, ok := e.(event.StatusPublishedEvent)
	if !ok {
		return
	}
	counts := status.Counts{
		Pending:   se.Pending,
		Running:   se.Running,
		Completed: se.Complete,
		Failed:    se.Failed,
	}

	m.mu.Lock()
	current := m.workers
	handlers := make([]func(Decision), len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	decision := m.policy.Evaluate(counts, current)
	if decision.Action == ActionNone {
		return
	}
	m.bus.Publish(event.NewScalingDecisionEvent(
		string(decision.Action), decision.Delta, decision.Reason, current,
	))
	for _, h := range handlers {
		h(decision)
	}
}
