package status

import (
	"time"

	"github.com/Iron-Ham/agentq/internal/taskqueue"
)

// Counts holds the number of records per partition after duplicates are
// resolved.
type Counts struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Total returns the number of records across all partitions.
func (c Counts) Total() int {
	return c.Pending + c.Running + c.Completed + c.Failed
}

// Snapshot is the published view of the queue.
type Snapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	Counts      Counts    `json:"counts"`

	Pending []*taskqueue.Record `json:"pending"`
	Running []*taskqueue.Record `json:"running"`
	// RecentCompleted is the newest completed tasks, most recent first.
	RecentCompleted []*taskqueue.Record `json:"recent_completed"`
	Failed          []*taskqueue.Record `json:"failed"`

	// Skipped counts partition files that could not be read as records.
	Skipped      int      `json:"skipped"`
	SkippedFiles []string `json:"skipped_files,omitempty"`

	// Duplicates counts record files shadowed by a copy of the same task
	// further along the lifecycle, typically left by a crash mid-transition.
	Duplicates int `json:"duplicates"`

	// Blocked lists pending tasks that can never be claimed because a
	// dependency failed or no longer exists.
	Blocked []BlockedTask `json:"blocked,omitempty"`
}

// BlockedTask is a pending task stuck behind dependencies that cannot
// complete. It stays pending until an operator removes or recreates it.
type BlockedTask struct {
	ID      string   `json:"id"`
	Failed  []string `json:"failed,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// Stale reports whether rec has been running longer than threshold at now.
// A zero threshold disables the check.
func Stale(rec *taskqueue.Record, now time.Time, threshold time.Duration) bool {
	if threshold <= 0 {
		return false
	}
	return rec.RunningFor(now) > threshold
}
