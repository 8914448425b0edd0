package dispatch

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Iron-Ham/agentq/internal/errors"
	"github.com/Iron-Ham/agentq/internal/event"
	"github.com/Iron-Ham/agentq/internal/logging"
	"github.com/Iron-Ham/agentq/internal/status"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
)

// StatusPublisher publishes a status snapshot after a cycle is dispatched.
// *status.Aggregator implements it.
type StatusPublisher interface {
	Publish() (*status.Snapshot, error)
}

// Dispatcher creates phase tasks through a Factory.
type Dispatcher struct {
	store     *taskqueue.Store
	factory   *taskqueue.Factory
	publisher event.Publisher
	status    StatusPublisher
	logger    *logging.Logger

	state   State
	sources []string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithScanSources sets the sources the scan phase creates tasks for.
func WithScanSources(sources ...string) Option {
	return func(d *Dispatcher) {
		if len(sources) > 0 {
			d.sources = slices.Clone(sources)
		}
	}
}

// WithStatusPublisher replaces the aggregator used after a full cycle.
func WithStatusPublisher(sp StatusPublisher) Option {
	return func(d *Dispatcher) { d.status = sp }
}

// WithLogger sets the dispatcher's logger. Defaults to the store's.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New returns a Dispatcher that continues from state.
func New(store *taskqueue.Store, factory *taskqueue.Factory, publisher event.Publisher, state State, opts ...Option) *Dispatcher {
	if publisher == nil {
		publisher = event.Discard
	}
	d := &Dispatcher{
		store:     store,
		factory:   factory,
		publisher: publisher,
		logger:    store.Logger(),
		state:     state,
		sources:   slices.Clone(DefaultScanSources),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.status == nil {
		d.status = status.NewAggregator(store, status.WithPublisher(publisher))
	}
	return d
}

// State returns the dispatcher's current state.
func (d *Dispatcher) State() State {
	return d.state
}

// Cycle lists the tasks created by one full cycle.
type Cycle struct {
	Number       int       `json:"cycle"`
	Scan         []string  `json:"scan"`
	Extraction   string    `json:"extraction"`
	Grading      string    `json:"grading"`
	Synthesis    string    `json:"synthesis"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

// TaskIDs returns every task in the cycle in dispatch order.
func (c Cycle) TaskIDs() []string {
	ids := slices.Clone(c.Scan)
	for _, id := range []string{c.Extraction, c.Grading, c.Synthesis} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// phasePayload is the payload of every dispatcher-built task. Workers
// decode it with taskqueue.DecodePayload.
type phasePayload struct {
	Cycle  int    `json:"cycle,omitempty"`
	Phase  Phase  `json:"phase,omitempty"`
	Source string `json:"source,omitempty"`
	Topic  string `json:"topic,omitempty"`
}

func (d *Dispatcher) create(ctx context.Context, typ taskqueue.Type, priority int, description string, payload phasePayload, deps []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := taskqueue.EncodePayload(payload)
	if err != nil {
		return "", err
	}
	return d.factory.Create(typ, description, body,
		taskqueue.WithPriority(priority),
		taskqueue.WithDependencies(deps...))
}

func (d *Dispatcher) scan(ctx context.Context, cycle int) ([]string, error) {
	ids := make([]string, 0, len(d.sources))
	for _, src := range d.sources {
		id, err := d.create(ctx, PhaseScan.TaskType(), PriorityScan,
			fmt.Sprintf("cycle %d: scan %s", cycle, src),
			phasePayload{Cycle: cycle, Phase: PhaseScan, Source: src}, nil)
		if err != nil {
			return ids, fmt.Errorf("dispatch scan %s: %w", src, err)
		}
		ids = append(ids, id)
	}
	d.logger.WithPhase(string(PhaseScan)).Info("phase dispatched", "cycle", cycle, "task_ids", ids)
	return ids, nil
}

func (d *Dispatcher) single(ctx context.Context, cycle int, phase Phase, deps []string) (string, error) {
	id, err := d.create(ctx, phase.TaskType(), phase.Priority(),
		fmt.Sprintf("cycle %d: %s", cycle, phase),
		phasePayload{Cycle: cycle, Phase: phase}, deps)
	if err != nil {
		return "", fmt.Errorf("dispatch %s: %w", phase, err)
	}
	d.logger.WithPhase(string(phase)).WithTask(id).Info("phase dispatched",
		"cycle", cycle, "dependencies", deps)
	return id, nil
}

// DispatchScan creates one independent scan task per source.
func (d *Dispatcher) DispatchScan(ctx context.Context) ([]string, error) {
	return d.scan(ctx, d.state.CycleNumber)
}

// DispatchExtraction creates an extraction task depending on the given
// scan tasks.
func (d *Dispatcher) DispatchExtraction(ctx context.Context, dependsOn []string) (string, error) {
	return d.single(ctx, d.state.CycleNumber, PhaseExtraction, dependsOn)
}

// DispatchGrading creates a grading task depending on an extraction task.
func (d *Dispatcher) DispatchGrading(ctx context.Context, dependsOn string) (string, error) {
	return d.single(ctx, d.state.CycleNumber, PhaseGrading, nonEmpty(dependsOn))
}

// DispatchVerification creates a verification task depending on a grading
// task. Verification is not part of the full cycle.
func (d *Dispatcher) DispatchVerification(ctx context.Context, dependsOn string) (string, error) {
	return d.single(ctx, d.state.CycleNumber, PhaseVerification, nonEmpty(dependsOn))
}

// DispatchSynthesis creates a synthesis task depending on a grading task.
func (d *Dispatcher) DispatchSynthesis(ctx context.Context, dependsOn string) (string, error) {
	return d.single(ctx, d.state.CycleNumber, PhaseSynthesis, nonEmpty(dependsOn))
}

// DispatchFullCycle increments the cycle counter and dispatches scan,
// extraction, grading and synthesis, each depending on the one before. It
// returns the new State, which the caller is expected to persist, and then
// publishes a status snapshot.
//
// If a phase fails, the tasks already created stay in the queue and the
// returned State still carries the incremented counter so that a retry does
// not reuse the cycle number.
func (d *Dispatcher) DispatchFullCycle(ctx context.Context) (Cycle, State, error) {
	next := d.state
	next.CycleNumber++
	d.state = next

	cycle := Cycle{Number: next.CycleNumber}
	log := d.logger.With("cycle", cycle.Number)

	var err error
	if cycle.Scan, err = d.scan(ctx, cycle.Number); err != nil {
		return cycle, next, err
	}
	if cycle.Extraction, err = d.single(ctx, cycle.Number, PhaseExtraction, cycle.Scan); err != nil {
		return cycle, next, err
	}
	if cycle.Grading, err = d.single(ctx, cycle.Number, PhaseGrading, nonEmpty(cycle.Extraction)); err != nil {
		return cycle, next, err
	}
	if cycle.Synthesis, err = d.single(ctx, cycle.Number, PhaseSynthesis, nonEmpty(cycle.Grading)); err != nil {
		return cycle, next, err
	}

	cycle.DispatchedAt = d.store.Now()
	next.LastDispatch = cycle.DispatchedAt
	d.state = next

	log.Info("cycle dispatched", "tasks", len(cycle.TaskIDs()))
	d.publisher.Publish(event.NewCycleDispatchedEvent(cycle.Number, cycle.TaskIDs()))

	if _, err := d.status.Publish(); err != nil {
		log.Warn("status publish after cycle failed", "error", err)
		return cycle, next, fmt.Errorf("publish status: %w", err)
	}
	return cycle, next, nil
}

// DispatchExploration creates one independent low-priority task per topic,
// outside the cycle pipeline.
func (d *Dispatcher) DispatchExploration(ctx context.Context, topics []string) ([]string, error) {
	ids := make([]string, 0, len(topics))
	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			return ids, errors.NewValidationError("exploration topic must not be empty").WithField("topic")
		}
		id, err := d.create(ctx, taskqueue.TypeExploration, PriorityExploration,
			"explore: "+topic, phasePayload{Topic: topic}, nil)
		if err != nil {
			return ids, fmt.Errorf("dispatch exploration %q: %w", topic, err)
		}
		ids = append(ids, id)
	}
	d.logger.WithPhase(string(taskqueue.TypeExploration)).Info("exploration dispatched", "task_ids", ids)
	return ids, nil
}

// DispatchPhase dispatches a single phase. Without explicit dependsOn IDs,
// the new task depends on every outstanding (pending or running) task of
// the upstream phase.
func (d *Dispatcher) DispatchPhase(ctx context.Context, phase Phase, dependsOn []string) ([]string, error) {
	if phase == PhaseScan {
		return d.DispatchScan(ctx)
	}
	if _, err := ParsePhase(string(phase)); err != nil {
		return nil, err
	}

	deps := dependsOn
	if len(deps) == 0 {
		var err error
		if deps, err = d.outstanding(phase.Upstream().TaskType()); err != nil {
			return nil, err
		}
		if len(deps) == 0 {
			d.logger.WithPhase(string(phase)).Warn("no outstanding upstream tasks; dispatching without dependencies",
				"upstream", string(phase.Upstream()))
		}
	}
	id, err := d.single(ctx, d.state.CycleNumber, phase, deps)
	if err != nil {
		return nil, err
	}
	return []string{id}, nil
}

// outstanding returns the IDs of pending and running tasks of typ, oldest
// first.
func (d *Dispatcher) outstanding(typ taskqueue.Type) ([]string, error) {
	var recs []*taskqueue.Record
	for _, p := range []taskqueue.Partition{taskqueue.PartitionPending, taskqueue.PartitionRunning} {
		part, _, err := d.store.Records(p)
		if err != nil {
			return nil, err
		}
		for _, rec := range part {
			if rec.Type == typ {
				recs = append(recs, rec)
			}
		}
	}
	taskqueue.SortByCreated(recs)
	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	return ids, nil
}

func nonEmpty(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}
