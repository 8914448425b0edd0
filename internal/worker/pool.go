package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/agentq/internal/event"
	"github.com/Iron-Ham/agentq/internal/logging"
	"github.com/Iron-Ham/agentq/internal/scaling"
	"github.com/Iron-Ham/agentq/internal/status"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
)

// DefaultEvaluateInterval is how often a Pool publishes status and lets its
// policy resize it.
const DefaultEvaluateInterval = 5 * time.Second

// StatusPublisher publishes a snapshot. The Pool's monitor reacts to the
// StatusPublishedEvent the publisher emits on the Pool's bus.
type StatusPublisher interface {
	Publish() (*status.Snapshot, error)
}

// Pool runs a varying number of Runners sharing one Handler.
type Pool struct {
	store      *taskqueue.Store
	handler    Handler
	bus        *event.Bus
	policy     *scaling.Policy
	status     StatusPublisher
	interval   time.Duration
	prefix     string
	runnerOpts []Option
	logger     *logging.Logger

	mu      sync.Mutex
	runners []*Runner
	started int
	wg      conc.WaitGroup
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPolicy sets the scaling policy. The default keeps one worker and
// grows to eight.
func WithPolicy(p *scaling.Policy) PoolOption {
	return func(pool *Pool) { pool.policy = p }
}

// WithEvaluateInterval sets how often the Pool publishes status.
func WithEvaluateInterval(d time.Duration) PoolOption {
	return func(pool *Pool) {
		if d > 0 {
			pool.interval = d
		}
	}
}

// WithRunnerOptions applies opts to every Runner the Pool starts. WithID is
// overridden; use WithIDPrefix instead.
func WithRunnerOptions(opts ...Option) PoolOption {
	return func(pool *Pool) { pool.runnerOpts = append(pool.runnerOpts, opts...) }
}

// WithIDPrefix names runners {prefix}-1, {prefix}-2, ...
func WithIDPrefix(prefix string) PoolOption {
	return func(pool *Pool) {
		if prefix != "" {
			pool.prefix = prefix
		}
	}
}

// WithPoolStatusPublisher replaces the aggregator the Pool publishes
// through. It must emit StatusPublishedEvent on the Pool's bus.
func WithPoolStatusPublisher(sp StatusPublisher) PoolOption {
	return func(pool *Pool) { pool.status = sp }
}

// NewPool returns a Pool executing tasks from store. Runner options are
// validated here so that Run only fails on store errors.
func NewPool(store *taskqueue.Store, handler Handler, bus *event.Bus, opts ...PoolOption) (*Pool, error) {
	p := &Pool{
		store:    store,
		handler:  handler,
		bus:      bus,
		interval: DefaultEvaluateInterval,
		prefix:   "worker-" + uuid.NewString()[:8],
		logger:   store.Logger().WithPhase("pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bus == nil {
		p.bus = event.NewBus(store.Logger())
	}
	if p.policy == nil {
		p.policy = scaling.NewPolicy()
	}
	if p.status == nil {
		p.status = status.NewAggregator(store, status.WithPublisher(p.bus))
	}
	if _, err := NewRunner(store, handler, p.runnerOpts...); err != nil {
		return nil, err
	}
	return p, nil
}

// Size returns the number of active runners.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.runners)
}

// Run starts the policy's minimum number of runners and resizes the pool
// after every status publish until ctx is cancelled. It returns once every
// runner has reported its last task.
func (p *Pool) Run(ctx context.Context) error {
	monitor := scaling.NewMonitor(p.bus, p.policy, 0)
	monitor.OnDecision(func(d scaling.Decision) {
		p.logger.Info("scaling pool", "action", d.Action.String(), "delta", d.Delta, "reason", d.Reason)
		p.resize(ctx, d.Delta)
		monitor.SetWorkers(p.Size())
	})

	p.resize(ctx, p.policy.MinWorkers())
	monitor.SetWorkers(p.Size())
	monitor.Start()
	defer monitor.Stop()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.evaluate()
	for {
		select {
		case <-ctx.Done():
			p.resize(ctx, -p.Size())
			p.wg.Wait()
			return nil
		case <-ticker.C:
			p.evaluate()
		}
	}
}

func (p *Pool) evaluate() {
	if _, err := p.status.Publish(); err != nil {
		p.logger.Warn("status publish failed", "error", err)
	}
}

// resize starts delta runners, or stops -delta of the newest ones.
func (p *Pool) resize(ctx context.Context, delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for ; delta > 0; delta-- {
		p.started++
		opts := append(p.runnerOpts[:len(p.runnerOpts):len(p.runnerOpts)], WithID(fmt.Sprintf("%s-%d", p.prefix, p.started)))
		r, err := NewRunner(p.store, p.handler, opts...)
		if err != nil {
			// Options were validated by NewPool.
			p.logger.Error("start runner", "error", err)
			return
		}
		p.runners = append(p.runners, r)
		p.wg.Go(func() { _ = r.Run(ctx) })
	}
	for ; delta < 0 && len(p.runners) > 0; delta++ {
		last := p.runners[len(p.runners)-1]
		last.Stop()
		p.runners = p.runners[:len(p.runners)-1]
	}
}
