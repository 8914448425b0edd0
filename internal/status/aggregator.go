package status

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/agentq/internal/errors"
	"github.com/Iron-Ham/agentq/internal/event"
	"github.com/Iron-Ham/agentq/internal/logging"
	"github.com/Iron-Ham/agentq/internal/taskqueue"
)

// DefaultRecentCompleted is how many completed tasks a snapshot lists.
const DefaultRecentCompleted = 20

// Aggregator summarizes a Store.
type Aggregator struct {
	store     *taskqueue.Store
	recent    int
	logger    *logging.Logger
	publisher event.Publisher
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithRecentCompleted sets how many completed tasks a snapshot lists.
// Negative values are treated as zero.
func WithRecentCompleted(n int) Option {
	return func(a *Aggregator) { a.recent = max(n, 0) }
}

// WithPublisher sets where StatusPublishedEvents go. Defaults to the
// store's publisher.
func WithPublisher(p event.Publisher) Option {
	return func(a *Aggregator) {
		if p != nil {
			a.publisher = p
		}
	}
}

// NewAggregator returns an Aggregator over store.
func NewAggregator(store *taskqueue.Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:     store,
		recent:    DefaultRecentCompleted,
		logger:    store.Logger().WithPhase("status"),
		publisher: store.Publisher(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type partitionScan struct {
	records []*taskqueue.Record
	skipped []error
}

// Snapshot reads every partition and builds a Snapshot. Unreadable record
// files are skipped and listed; only a partition directory that cannot be
// read fails the snapshot.
func (a *Aggregator) Snapshot() (*Snapshot, error) {
	scans := make([]partitionScan, len(taskqueue.Partitions))

	p := pool.New().WithErrors()
	for i, part := range taskqueue.Partitions {
		p.Go(func() error {
			recs, skipped, err := a.store.Records(part)
			if err != nil {
				return fmt.Errorf("scan %s: %w", part, err)
			}
			scans[i] = partitionScan{records: recs, skipped: skipped}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{GeneratedAt: a.store.Now()}

	// A task copied into two partitions by a crash belongs to the later one.
	best := make(map[string]taskqueue.Partition)
	for i, part := range taskqueue.Partitions {
		for _, rec := range scans[i].records {
			if prev, ok := best[rec.ID]; !ok || part.Rank() > prev.Rank() {
				best[rec.ID] = part
			}
		}
	}

	lists := make(map[taskqueue.Partition][]*taskqueue.Record, len(taskqueue.Partitions))
	for i, part := range taskqueue.Partitions {
		for _, rec := range scans[i].records {
			if best[rec.ID] != part {
				snap.Duplicates++
				a.logger.WithTask(rec.ID).Warn("duplicate record shadowed",
					"partition", string(part), "kept", string(best[rec.ID]))
				continue
			}
			lists[part] = append(lists[part], rec)
		}
		for _, skipErr := range scans[i].skipped {
			snap.Skipped++
			snap.SkippedFiles = append(snap.SkippedFiles, skippedName(skipErr))
			a.logger.Warn("skipping unreadable record", "partition", string(part), "error", skipErr)
		}
	}
	slices.Sort(snap.SkippedFiles)

	for _, rec := range lists[taskqueue.PartitionRunning] {
		a.fillStartedAt(rec)
	}

	snap.Pending = orEmpty(lists[taskqueue.PartitionPending])
	snap.Running = orEmpty(lists[taskqueue.PartitionRunning])
	snap.Failed = orEmpty(lists[taskqueue.PartitionFailed])
	taskqueue.SortByPriority(snap.Pending)
	taskqueue.SortByPriority(snap.Running)
	taskqueue.SortByPriority(snap.Failed)

	complete := lists[taskqueue.PartitionComplete]
	snap.Counts = Counts{
		Pending:   len(snap.Pending),
		Running:   len(snap.Running),
		Completed: len(complete),
		Failed:    len(snap.Failed),
	}
	snap.RecentCompleted = recentCompleted(complete, a.recent)
	snap.Blocked = a.blocked(snap.Pending)

	return snap, nil
}

// fillStartedAt gives a running record caught between its claim rename and
// the started_at rewrite the record file's modification time, which is no
// later than the claim, so a claimer that died in that window still shows
// up as stale.
func (a *Aggregator) fillStartedAt(rec *taskqueue.Record) {
	if rec.StartedAt != nil {
		return
	}
	mtime, err := a.store.ModTime(taskqueue.PartitionRunning, rec.ID)
	if err != nil {
		a.logger.WithTask(rec.ID).Debug("no start time for running record", "error", err)
		return
	}
	mtime = mtime.UTC()
	rec.StartedAt = &mtime
}

// blocked returns the pending records whose dependencies can never be met.
// A dependency lookup that fails is logged and the record left out; it does
// not fail the snapshot.
func (a *Aggregator) blocked(pending []*taskqueue.Record) []BlockedTask {
	var out []BlockedTask
	for _, rec := range pending {
		if len(rec.Dependencies) == 0 {
			continue
		}
		err := a.store.CheckDependencies(rec)
		var depErr *errors.DependencyError
		switch {
		case err == nil:
		case errors.As(err, &depErr):
			if !depErr.Retryable() {
				out = append(out, BlockedTask{ID: rec.ID, Failed: depErr.Failed, Missing: depErr.Missing})
			}
		default:
			a.logger.WithTask(rec.ID).Warn("dependency check failed", "error", err)
		}
	}
	return out
}

// Publish builds a snapshot, writes it to tasks/status.json and returns it.
func (a *Aggregator) Publish() (*Snapshot, error) {
	snap, err := a.Snapshot()
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal status: %w", err)
	}
	if err := a.store.WriteStatus(append(data, '\n')); err != nil {
		return nil, err
	}

	a.logger.Info("status published",
		"pending", snap.Counts.Pending,
		"running", snap.Counts.Running,
		"completed", snap.Counts.Completed,
		"failed", snap.Counts.Failed,
		"skipped", snap.Skipped)
	a.publisher.Publish(event.NewStatusPublishedEvent(
		snap.Counts.Pending, snap.Counts.Running, snap.Counts.Completed, snap.Counts.Failed))
	return snap, nil
}

// Load reads the last published snapshot back from tasks/status.json.
func Load(store *taskqueue.Store) (*Snapshot, error) {
	data, err := store.ReadStatus()
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.NewMalformedRecordError(store.StatusPath(), err)
	}
	return &snap, nil
}

// recentCompleted returns the n most recently completed records, newest
// first. Records missing completed_at sort last.
func recentCompleted(recs []*taskqueue.Record, n int) []*taskqueue.Record {
	sorted := slices.Clone(recs)
	slices.SortStableFunc(sorted, func(a, b *taskqueue.Record) int {
		switch {
		case a.CompletedAt == nil && b.CompletedAt == nil:
			return cmp.Compare(a.ID, b.ID)
		case a.CompletedAt == nil:
			return 1
		case b.CompletedAt == nil:
			return -1
		}
		return cmp.Or(b.CompletedAt.Compare(*a.CompletedAt), cmp.Compare(a.ID, b.ID))
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return orEmpty(sorted)
}

func skippedName(err error) string {
	var malformed *errors.MalformedRecordError
	if errors.As(err, &malformed) {
		return malformed.Path
	}
	var ioErr *errors.IOError
	if errors.As(err, &ioErr) {
		return ioErr.Path
	}
	return err.Error()
}

// orEmpty keeps empty lists as [] rather than null in the published JSON.
func orEmpty(recs []*taskqueue.Record) []*taskqueue.Record {
	if recs == nil {
		return []*taskqueue.Record{}
	}
	return recs
}
