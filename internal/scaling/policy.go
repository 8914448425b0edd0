package scaling

import (
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/agentq/internal/status"
)

// Default policy values.
const (
	defaultMinWorkers         = 1
	defaultMaxWorkers         = 8
	defaultScaleUpThreshold   = 2
	defaultScaleDownThreshold = 1
	defaultCooldownPeriod     = 30 * time.Second
)

// Option configures a Policy.
type Option func(*Policy)

// WithMinWorkers sets the number of workers always kept running.
func WithMinWorkers(n int) Option {
	return func(p *Policy) { p.minWorkers = n }
}

// WithMaxWorkers caps the pool size.
func WithMaxWorkers(n int) Option {
	return func(p *Policy) { p.maxWorkers = n }
}

// WithScaleUpThreshold sets the pending count above which to scale up.
// Scaling up also requires more pending than running tasks.
func WithScaleUpThreshold(n int) Option {
	return func(p *Policy) { p.scaleUpThreshold = n }
}

// WithScaleDownThreshold sets the running count at or below which an empty
// pending partition lets the pool shrink.
func WithScaleDownThreshold(n int) Option {
	return func(p *Policy) { p.scaleDownThreshold = n }
}

// WithCooldownPeriod sets the minimum time between scaling decisions.
func WithCooldownPeriod(d time.Duration) Option {
	return func(p *Policy) { p.cooldownPeriod = d }
}

// WithClock overrides the time source used for the cooldown.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// Policy defines the rules for elastic scaling decisions.
// It is safe for concurrent use.
type Policy struct {
	mu                 sync.Mutex
	minWorkers         int
	maxWorkers         int
	scaleUpThreshold   int
	scaleDownThreshold int
	cooldownPeriod     time.Duration
	lastDecisionTime   time.Time
	now                func() time.Time
}

// NewPolicy creates a Policy with the given options.
// Unset options use defaults.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		minWorkers:         defaultMinWorkers,
		maxWorkers:         defaultMaxWorkers,
		scaleUpThreshold:   defaultScaleUpThreshold,
		scaleDownThreshold: defaultScaleDownThreshold,
		cooldownPeriod:     defaultCooldownPeriod,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.minWorkers < 0 {
		p.minWorkers = 0
	}
	if p.maxWorkers < p.minWorkers {
		p.maxWorkers = p.minWorkers
	}
	return p
}

// MinWorkers returns the lower bound on the pool size.
func (p *Policy) MinWorkers() int { return p.minWorkers }

// MaxWorkers returns the upper bound on the pool size.
func (p *Policy) MaxWorkers() int { return p.maxWorkers }

// Evaluate inspects the queue counts and the current worker count and
// returns a scaling decision. The cooldown period prevents thrash.
func (p *Policy) Evaluate(counts status.Counts, workers int) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()

	if !p.lastDecisionTime.IsZero() && now.Sub(p.lastDecisionTime) < p.cooldownPeriod {
		return hold("cooldown period active")
	}

	if counts.Pending > p.scaleUpThreshold && counts.Pending > counts.Running && workers < p.maxWorkers {
		delta := min(counts.Pending-counts.Running, p.maxWorkers-workers)
		if delta > 0 {
			p.lastDecisionTime = now
			return Decision{
				Action: ActionScaleUp,
				Delta:  delta,
				Reason: fmt.Sprintf("%d pending tasks with %d running (threshold: %d)", counts.Pending, counts.Running, p.scaleUpThreshold),
			}
		}
	}

	// Shrink one worker at a time.
	if counts.Pending == 0 && counts.Running <= p.scaleDownThreshold && workers > p.minWorkers {
		p.lastDecisionTime = now
		return Decision{
			Action: ActionScaleDown,
			Delta:  -1,
			Reason: fmt.Sprintf("no pending tasks with %d running (threshold: %d)", counts.Running, p.scaleDownThreshold),
		}
	}

	return hold("no scaling needed")
}
