package cleanup

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/agentq/internal/errors"
	"github.com/Iron-Ham/agentq/internal/event"
	"github.com/Iron-Ham/agentq/internal/logging"
	"github.com/Iron-Ham/agentq/internal/status"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
)

// terminal are the partitions a sweep may remove from.
var terminal = []taskqueue.Partition{taskqueue.PartitionComplete, taskqueue.PartitionFailed}

// StatusPublisher publishes a status snapshot after a sweep.
type StatusPublisher interface {
	Publish() (*status.Snapshot, error)
}

// Sweeper removes expired terminal records from a Store.
type Sweeper struct {
	store          *taskqueue.Store
	logger         *logging.Logger
	publisher      event.Publisher
	status         StatusPublisher
	includeResults bool
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithResults also removes result files older than the cutoff.
func WithResults(include bool) Option {
	return func(s *Sweeper) { s.includeResults = include }
}

// WithStatusPublisher replaces the aggregator used after a sweep.
func WithStatusPublisher(sp StatusPublisher) Option {
	return func(s *Sweeper) { s.status = sp }
}

// WithPublisher sets where RetentionSweptEvents go. Defaults to the store's
// publisher.
func WithPublisher(p event.Publisher) Option {
	return func(s *Sweeper) {
		if p != nil {
			s.publisher = p
		}
	}
}

// NewSweeper returns a Sweeper over store.
func NewSweeper(store *taskqueue.Store, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:     store,
		logger:    store.Logger().WithPhase("cleanup"),
		publisher: store.Publisher(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.status == nil {
		s.status = status.NewAggregator(store, status.WithPublisher(s.publisher))
	}
	return s
}

// Plan snapshots the records older than maxAge. Records that disappear
// while being examined are ignored.
func (s *Sweeper) Plan(maxAge time.Duration) (*Plan, error) {
	if maxAge < 0 {
		return nil, errors.NewValidationError("max age must not be negative").
			WithField("max_age").WithValue(maxAge)
	}
	now := s.store.Now()
	plan := &Plan{CreatedAt: now, MaxAge: maxAge, Cutoff: now.Add(-maxAge)}

	for _, p := range terminal {
		ids, err := s.store.IDs(p)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			mtime, err := s.store.ModTime(p, id)
			if err != nil {
				if errors.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			if expired(mtime, plan.Cutoff) {
				plan.Records = append(plan.Records, Candidate{Partition: p, ID: id, ModTime: mtime})
			}
		}
	}

	if s.includeResults {
		ids, err := s.store.ResultIDs()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			mtime, err := s.store.ResultModTime(id)
			if err != nil {
				if errors.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			if expired(mtime, plan.Cutoff) {
				plan.Results = append(plan.Results, id)
			}
		}
	}
	return plan, nil
}

// Execute removes the records in plan, one goroutine per partition. A
// record already gone is not an error, so executing a plan twice is
// harmless.
func (s *Sweeper) Execute(plan *Plan) *Results {
	var (
		records, results atomic.Int64
		mu               sync.Mutex
		errs             []string
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err.Error())
		mu.Unlock()
	}

	byPartition := make(map[taskqueue.Partition][]Candidate)
	for _, c := range plan.Records {
		byPartition[c.Partition] = append(byPartition[c.Partition], c)
	}

	var wg conc.WaitGroup
	for p, candidates := range byPartition {
		wg.Go(func() {
			for _, c := range candidates {
				err := s.store.Remove(p, c.ID)
				switch {
				case err == nil:
					records.Add(1)
					s.logger.WithTask(c.ID).Debug("record expired", "partition", string(p), "mod_time", c.ModTime)
				case errors.IsNotFound(err):
				default:
					fail(err)
				}
			}
		})
	}
	if len(plan.Results) > 0 {
		wg.Go(func() {
			for _, id := range plan.Results {
				err := s.store.RemoveResult(id)
				switch {
				case err == nil:
					results.Add(1)
				case errors.IsNotFound(err):
				default:
					fail(err)
				}
			}
		})
	}
	wg.Wait()

	return &Results{
		RecordsRemoved: int(records.Load()),
		ResultsRemoved: int(results.Load()),
		Errors:         errs,
	}
}

// Sweep removes complete and failed records whose file modification time is
// at or before now-maxAge, publishes a fresh status snapshot and returns the
// number of records removed.
func (s *Sweeper) Sweep(maxAge time.Duration) (int, error) {
	plan, err := s.Plan(maxAge)
	if err != nil {
		return 0, err
	}
	res := s.Execute(plan)

	s.logger.Info("retention sweep finished",
		"max_age", maxAge.String(),
		"candidates", len(plan.Records),
		"removed", res.RecordsRemoved,
		"results_removed", res.ResultsRemoved,
		"errors", len(res.Errors))
	s.publisher.Publish(event.NewRetentionSweptEvent(res.RecordsRemoved, maxAge))

	var sweepErr error
	if len(res.Errors) > 0 {
		sweepErr = fmt.Errorf("retention sweep: %d removals failed: %s", len(res.Errors), res.Errors[0])
	}
	if _, err := s.status.Publish(); err != nil {
		return res.RecordsRemoved, errors.Join(sweepErr, fmt.Errorf("publish status: %w", err))
	}
	return res.RecordsRemoved, sweepErr
}
