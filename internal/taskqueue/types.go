package taskqueue

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/Iron-Ham/agentq/internal/errors"
)

// Status represents the lifecycle state recorded inside a task record.
type Status string

const (
	// StatusPending indicates the task is waiting to be claimed.
	StatusPending Status = "pending"

	// StatusRunning indicates a worker has claimed the task.
	StatusRunning Status = "running"

	// StatusCompleted indicates the task finished successfully.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the task finished with an error. Failed tasks
	// are never retried automatically.
	StatusFailed Status = "failed"
)

// String returns the string representation of the task status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Partition is a directory under tasks/ holding the records of one status.
// A record lives in exactly one partition at a time and the partition, not
// the status field inside the file, is authoritative: records read from a
// partition are reported with that partition's status.
type Partition string

const (
	PartitionPending  Partition = "pending"
	PartitionRunning  Partition = "running"
	PartitionComplete Partition = "complete"
	PartitionFailed   Partition = "failed"
)

// Partitions lists every partition in lifecycle order.
var Partitions = []Partition{PartitionPending, PartitionRunning, PartitionComplete, PartitionFailed}

// String returns the directory name of the partition.
func (p Partition) String() string {
	return string(p)
}

// Status returns the record status implied by the partition.
func (p Partition) Status() Status {
	switch p {
	case PartitionRunning:
		return StatusRunning
	case PartitionComplete:
		return StatusCompleted
	case PartitionFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// IsTerminal reports whether records in p have finished.
func (p Partition) IsTerminal() bool {
	return p == PartitionComplete || p == PartitionFailed
}

// Rank orders partitions by lifecycle stage. When a crash leaves the same ID
// in two partitions, the copy with the higher rank wins.
func (p Partition) Rank() int {
	switch p {
	case PartitionPending:
		return 0
	case PartitionRunning:
		return 1
	case PartitionComplete, PartitionFailed:
		return 2
	default:
		return -1
	}
}

// ParsePartition converts a partition name to a Partition.
func ParsePartition(name string) (Partition, error) {
	p := Partition(name)
	if !slices.Contains(Partitions, p) {
		return "", errors.NewValidationError(fmt.Sprintf("unknown partition %q (want pending, running, complete or failed)", name)).
			WithField("partition").
			WithValue(name)
	}
	return p, nil
}

// Type is the task type tag. Workers use it to decide which tasks they can
// execute; the store treats it as an opaque, filename-safe string.
type Type string

// Task types created by the dispatcher.
const (
	TypeScan         Type = "scan"
	TypeExtraction   Type = "extraction"
	TypeGrading      Type = "grading"
	TypeVerification Type = "verification"
	TypeSynthesis    Type = "synthesis"
	TypeExploration  Type = "exploration"
)

// KnownTypes lists the task types the dispatcher produces.
var KnownTypes = []Type{TypeScan, TypeExtraction, TypeGrading, TypeVerification, TypeSynthesis, TypeExploration}

// String returns the string form of the type.
func (t Type) String() string {
	return string(t)
}

// typePattern keeps types usable as the first component of an ID and a
// filename. Hyphens are excluded since they separate ID components.
var typePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_]*$`)

// Validate checks that the type is non-empty and filename-safe.
func (t Type) Validate() error {
	if t == "" {
		return errors.NewValidationError("task type must not be empty").WithField("type")
	}
	if !typePattern.MatchString(string(t)) {
		return errors.NewValidationError("task type must contain only letters, digits and underscores").
			WithField("type").
			WithValue(string(t))
	}
	return nil
}

// idPattern accepts every ID the factory can produce, plus hand-written IDs
// that are safe to use as filenames.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateID rejects IDs that could escape a partition directory.
func ValidateID(id string) error {
	if id == "" {
		return errors.NewValidationError("task id must not be empty").WithField("id")
	}
	if !idPattern.MatchString(id) || len(id) > 200 {
		return errors.NewValidationError("task id is not filename-safe").WithField("id").WithValue(id)
	}
	return nil
}

// Record is one unit of work. It is serialized as JSON to
// tasks/{partition}/{id}.json.
type Record struct {
	// ID is {type}-{YYYYMMDDThhmmss}-{pid}, optionally followed by -N when
	// one process creates several tasks of the same type within a second.
	ID string `json:"id"`

	Type        Type   `json:"type"`
	Description string `json:"description"`

	// Payload is opaque to the store. See EncodePayload and DecodePayload.
	Payload json.RawMessage `json:"payload"`

	// SchemaVersion is the payload schema version declared by the creator.
	SchemaVersion int `json:"schema_version"`

	// Dependencies are IDs of tasks whose results this task consumes.
	Dependencies []string `json:"dependencies"`

	// Priority is advisory; lower is more urgent.
	Priority int `json:"priority"`

	Status Status `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Error is set only when the task failed.
	Error string `json:"error,omitempty"`

	// ClaimedBy identifies the worker that claimed the task, if it said.
	ClaimedBy string `json:"claimed_by,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Payload != nil {
		cp.Payload = slices.Clone(r.Payload)
	}
	if r.Dependencies != nil {
		cp.Dependencies = slices.Clone(r.Dependencies)
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		cp.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// RunningFor returns how long the task has been running at now, or zero if
// it has not started or already finished.
func (r *Record) RunningFor(now time.Time) time.Duration {
	if r.StartedAt == nil || r.CompletedAt != nil {
		return 0
	}
	return now.Sub(*r.StartedAt)
}

// Duration returns the time between claim and completion, or zero if either
// timestamp is missing.
func (r *Record) Duration() time.Duration {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(*r.StartedAt)
}

// dedupe returns ids with duplicates and empty entries removed, keeping the
// first occurrence.
func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
