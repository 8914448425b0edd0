package cleanup

import (
	"time"

	"github.com/Iron-Ham/agentq/internal/taskqueue"
)

// Candidate is a record selected for removal.
type Candidate struct {
	Partition taskqueue.Partition `json:"partition"`
	ID        string              `json:"id"`
	ModTime   time.Time           `json:"mod_time"`
}

// Plan is the snapshot of what a sweep will remove.
type Plan struct {
	CreatedAt time.Time     `json:"created_at"`
	MaxAge    time.Duration `json:"max_age"`
	Cutoff    time.Time     `json:"cutoff"`

	Records []Candidate `json:"records"`
	// Results lists result files to remove when results are swept too.
	Results []string `json:"results,omitempty"`
}

// Empty reports whether the plan removes nothing.
func (p *Plan) Empty() bool {
	return len(p.Records) == 0 && len(p.Results) == 0
}

// Results is the outcome of executing a Plan.
type Results struct {
	RecordsRemoved int      `json:"records_removed"`
	ResultsRemoved int      `json:"results_removed"`
	Errors         []string `json:"errors,omitempty"`
}

// expired reports whether mtime is at or before cutoff.
func expired(mtime, cutoff time.Time) bool {
	return !mtime.After(cutoff)
}
