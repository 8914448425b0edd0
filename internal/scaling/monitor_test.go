package scaling

import (
	"testing"

	"github.com/Iron-Ham/agentq/internal/event"
	"github.com/Iron-Ham/agentq/internal/logging"
)

func TestMonitor_DecidesOnStatus(t *testing.T) {
	bus := event.NewBus(logging.NopLogger())
	m := NewMonitor(bus, NewPolicy(WithCooldownPeriod(0), WithMaxWorkers(4)), 1)

	var decisions []Decision
	m.OnDecision(func(d Decision) { decisions = append(decisions, d) })

	var published []event.ScalingDecisionEvent
	bus.Subscribe(event.TypeScalingDecision, func(e event.Event) {
		published = append(published, e.(event.ScalingDecisionEvent))
	})

	m.Start()
	defer m.Stop()

	bus.Publish(event.NewStatusPublishedEvent(6, 0, 0, 0))
	if len(decisions) != 1 || decisions[0].Action != ActionScaleUp || decisions[0].Delta != 3 {
		t.Fatalf("decisions = %+v, want one scale_up by 3", decisions)
	}
	if len(published) != 1 || published[0].Workers != 1 {
		t.Errorf("published = %+v", published)
	}

	m.SetWorkers(4)
	bus.Publish(event.NewStatusPublishedEvent(0, 0, 6, 0))
	if len(decisions) != 2 || decisions[1].Action != ActionScaleDown {
		t.Errorf("decisions = %+v, want a scale_down second", decisions)
	}
}

func TestMonitor_IgnoresBalancedQueue(t *testing.T) {
	bus := event.NewBus(logging.NopLogger())
	m := NewMonitor(bus, NewPolicy(WithCooldownPeriod(0)), 2)
	called := false
	m.OnDecision(func(Decision) { called = true })
	m.Start()
	defer m.Stop()

	bus.Publish(event.NewStatusPublishedEvent(1, 2, 0, 0))
	if called {
		t.Error("handler called for a balanced queue")
	}
}

func TestMonitor_Stop(t *testing.T) {
	bus := event.NewBus(logging.NopLogger())
	m := NewMonitor(bus, NewPolicy(WithCooldownPeriod(0)), 1)
	called := false
	m.OnDecision(func(Decision) { called = true })

	m.Start()
	m.Start()
	if got := bus.SubscriptionCount(); got != 1 {
		t.Errorf("SubscriptionCount() = %d after double Start, want 1", got)
	}
	m.Stop()
	m.Stop()

	bus.Publish(event.NewStatusPublishedEvent(10, 0, 0, 0))
	if called {
		t.Error("handler called after Stop")
	}
	if got := bus.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() = %d after Stop, want 0", got)
	}
}
