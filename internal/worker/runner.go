package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/agentq/internal/errors"
	"github.com/Iron-Ham/agentq/internal/logging"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
	"github.com/Iron-Ham/agentq/internal/watch"
)

// DefaultPollInterval is how often an idle Runner re-lists pending tasks
// when no watcher wakes it first.
const DefaultPollInterval = 2 * time.Second

// Handler executes one task and returns its result payload. A returned
// error fails the task with the error text as the reason.
type Handler func(ctx context.Context, rec *taskqueue.Record) (json.RawMessage, error)

// Runner claims and executes tasks until its context is cancelled.
type Runner struct {
	store   *taskqueue.Store
	handler Handler
	id      string
	filter  *TypeFilter
	poll    time.Duration
	watcher *watch.Watcher
	logger  *logging.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Runner.
type Option func(*Runner) error

// WithID sets the worker identity recorded on claimed tasks. Defaults to a
// random UUID.
func WithID(id string) Option {
	return func(r *Runner) error {
		if id != "" {
			r.id = id
		}
		return nil
	}
}

// WithTypes restricts the Runner to task types matching pattern.
func WithTypes(pattern string) Option {
	return func(r *Runner) error {
		f, err := NewTypeFilter(pattern)
		if err != nil {
			return err
		}
		r.filter = f
		return nil
	}
}

// WithPollInterval sets the idle re-list interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) error {
		if d > 0 {
			r.poll = d
		}
		return nil
	}
}

// WithWatcher wakes the Runner as soon as records arrive in pending.
func WithWatcher(w *watch.Watcher) Option {
	return func(r *Runner) error {
		r.watcher = w
		return nil
	}
}

// NewRunner returns a Runner that executes tasks from store with handler.
func NewRunner(store *taskqueue.Store, handler Handler, opts ...Option) (*Runner, error) {
	if handler == nil {
		return nil, errors.NewValidationError("handler is required")
	}
	all, _ := NewTypeFilter("*")
	r := &Runner{
		store:   store,
		handler: handler,
		id:      uuid.NewString(),
		filter:  all,
		poll:    DefaultPollInterval,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = store.Logger().WithWorker(r.id)
	return r, nil
}

// ID returns the worker identity.
func (r *Runner) ID() string { return r.id }

// Next claims the most urgent claimable task the Runner handles. It returns
// nil when there is nothing to claim. Losing a claim race to another worker
// moves on to the next candidate.
func (r *Runner) Next() (*taskqueue.Record, error) {
	pending, _, err := r.store.Records(taskqueue.PartitionPending)
	if err != nil {
		return nil, err
	}
	candidates, err := r.store.Claimable(r.filter.Filter(pending))
	if err != nil {
		return nil, err
	}
	for _, cand := range candidates {
		rec, err := r.store.ClaimAs(cand.ID, r.id)
		if err == nil {
			return rec, nil
		}
		if errors.IsNotFound(err) || errors.Is(err, errors.ErrDependenciesUnmet) {
			r.logger.WithTask(cand.ID).Debug("candidate unavailable", "reason", err)
			continue
		}
		return nil, err
	}
	return nil, nil
}

// RunOnce claims and executes at most one task. It reports whether a task
// was processed. A task whose handler fails, or returns a result the store
// rejects as invalid JSON, is reported failed and is not an error of RunOnce.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	rec, err := r.Next()
	if err != nil || rec == nil {
		return false, err
	}
	log := r.logger.WithTask(rec.ID).WithPhase(string(rec.Type))
	log.Info("task started")

	result, runErr := r.execute(ctx, rec)
	if runErr != nil {
		if _, err := r.store.Fail(rec.ID, runErr.Error()); err != nil {
			return true, fmt.Errorf("report failure of %s: %w", rec.ID, err)
		}
		log.Warn("task failed", "error", runErr)
		return true, nil
	}
	if _, err := r.store.Complete(rec.ID, result); err != nil {
		if !errors.Is(err, errors.ErrInvalidInput) {
			return true, fmt.Errorf("report completion of %s: %w", rec.ID, err)
		}
		// The store refused the result and left the task running; fail it so
		// it does not sit there with no one to release it.
		if _, failErr := r.store.Fail(rec.ID, "invalid result: "+err.Error()); failErr != nil {
			return true, fmt.Errorf("report invalid result of %s: %w", rec.ID, errors.Join(err, failErr))
		}
		log.Warn("task failed", "error", err)
		return true, nil
	}
	log.Info("task completed")
	return true, nil
}

// execute runs the handler, turning a panic into a task failure.
func (r *Runner) execute(ctx context.Context, rec *taskqueue.Record) (result json.RawMessage, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return r.handler(ctx, rec.Clone())
}

// Run processes tasks until ctx is cancelled or Stop is called, sleeping
// between empty polls. Store errors are logged and retried after the poll
// interval.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("worker started", "types", r.filter.String(), "poll_interval", r.poll.String())
	defer r.logger.Info("worker stopped")

	// idle ends on Stop as well as on ctx; handlers keep ctx so a stopped
	// Runner finishes the task in hand.
	idle, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stop:
			cancel()
		case <-idle.Done():
		}
	}()

	for {
		if err := idle.Err(); err != nil {
			return nil
		}
		processed, err := r.RunOnce(ctx)
		if err != nil {
			r.logger.Error("worker iteration failed", "error", err)
		}
		if processed && err == nil {
			continue
		}
		if err := r.watcher.Wait(idle, r.poll); err != nil {
			return nil
		}
	}
}

// Stop makes Run return after the task in progress, if any, is reported.
// A stopped Runner cannot be restarted.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}
