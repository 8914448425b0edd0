package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/agentq/internal/event"
	"github.com/Iron-Ham/agentq/internal/logging"
	"github.com/Iron-Ham/agentq/internal/scaling"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
)

func TestPool_ScalesWithBacklog(t *testing.T) {
	store := taskqueue.NewStore(t.TempDir())
	factory := taskqueue.NewFactory(store)
	const tasks = 24
	for range tasks {
		if _, err := factory.Create(taskqueue.TypeScan, "", nil); err != nil {
			t.Fatal(err)
		}
	}

	bus := event.NewBus(logging.NopLogger())
	var (
		mu       sync.Mutex
		runs     = make(map[string]int)
		maxDelta int
	)
	bus.Subscribe(event.TypeScalingDecision, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		maxDelta = max(maxDelta, e.(event.ScalingDecisionEvent).Delta)
	})
	handler := func(_ context.Context, rec *taskqueue.Record) (json.RawMessage, error) {
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		runs[rec.ID]++
		mu.Unlock()
		return nil, nil
	}

	pool, err := NewPool(store, handler, bus,
		WithPolicy(scaling.NewPolicy(scaling.WithMinWorkers(1), scaling.WithMaxWorkers(4), scaling.WithCooldownPeriod(0))),
		WithEvaluateInterval(5*time.Millisecond),
		WithRunnerOptions(WithPollInterval(5*time.Millisecond)),
		WithIDPrefix("pool"),
	)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	// Wait for the backlog to drain and the pool to shrink back to one.
	deadline := time.Now().Add(10 * time.Second)
	for {
		ids, err := store.IDs(taskqueue.PartitionComplete)
		if err != nil {
			t.Fatal(err)
		}
		if len(ids) == tasks && pool.Size() == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("completed %d/%d, pool size %d", len(ids), tasks, pool.Size())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}
	if pool.Size() != 0 {
		t.Errorf("Size() after Run = %d, want 0", pool.Size())
	}

	mu.Lock()
	defer mu.Unlock()
	if maxDelta < 1 {
		t.Error("pool never scaled up")
	}
	for id, n := range runs {
		if n != 1 {
			t.Errorf("%s executed %d times", id, n)
		}
	}
	if len(runs) != tasks {
		t.Errorf("executed %d tasks, want %d", len(runs), tasks)
	}
}

func TestNewPool_ValidatesRunnerOptions(t *testing.T) {
	store := taskqueue.NewStore(t.TempDir())
	if _, err := NewPool(store, echo, nil, WithRunnerOptions(WithTypes("["))); err == nil {
		t.Error("expected error for invalid type pattern")
	}
	if _, err := NewPool(store, nil, nil); err == nil {
		t.Error("expected error for nil handler")
	}
}

func TestRunner_StopFinishesCurrentTask(t *testing.T) {
	store := taskqueue.NewStore(t.TempDir())
	id, err := taskqueue.NewFactory(store).Create(taskqueue.TypeScan, "", nil)
	if err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	var r *Runner
	r, err = NewRunner(store, func(ctx context.Context, _ *taskqueue.Record) (json.RawMessage, error) {
		close(started)
		<-release
		return nil, ctx.Err()
	}, WithPollInterval(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		_ = r.Run(context.Background())
		close(done)
	}()
	<-started
	r.Stop()
	close(release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if _, p, err := store.Get(id); err != nil || p != taskqueue.PartitionComplete {
		t.Errorf("task in %s (err %v), want complete", p, err)
	}
}
